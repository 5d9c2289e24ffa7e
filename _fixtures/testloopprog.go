package main

import (
	"fmt"
	"os"
	"runtime"
)

func foo(i int) int {
	return i * 2
}

func bar(i int) int {
	return i + 1
}

func main() {
	runtime.LockOSThread()
	n := 1
	for i := 0; i < 3; i++ {
		n = foo(n)
		n = bar(n)
	}
	fmt.Println(n)
	os.Exit(0)
}
