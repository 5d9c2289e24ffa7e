package main

import (
	"fmt"
	"runtime"
)

func helloworld() {
	fmt.Println("hello, world")
}

func main() {
	runtime.LockOSThread()
	helloworld()
}
