package main

import (
	"fmt"
	"runtime"
)

func gamma(n int) int {
	return n * n
}

func beta(n int) int {
	return gamma(n + 1)
}

func alpha(n int) int {
	return beta(n * 2)
}

func main() {
	runtime.LockOSThread()
	fmt.Println(alpha(3))
}
