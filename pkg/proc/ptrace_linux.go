package proc

import "runtime"

// All ptrace(2) requests after the initial attach must come from the
// thread that performed the attach. Each Inferior therefore owns one
// goroutine locked to an OS thread, and every ptrace call is funneled
// through it.
func (inf *Inferior) handlePtraceFuncs() {
	runtime.LockOSThread()

	for fn := range inf.ptraceChan {
		fn()
		inf.ptraceDoneChan <- struct{}{}
	}
}

func (inf *Inferior) execPtraceFunc(fn func()) {
	inf.ptraceChan <- fn
	<-inf.ptraceDoneChan
}
