package main

import (
	"runtime"
	"time"
)

func main() {
	runtime.LockOSThread()
	for {
		time.Sleep(time.Millisecond)
	}
}
