// Command framedemo is a debugger exercise: main calls a helper that keeps its
// own stack frame, so the frame pointer, return address and locals of both
// functions can be inspected.
//
// Build without optimizations before stepping through it:
//
//	go build -gcflags='all=-N -l' -o framedemo ./framedemo
//	dlv exec ./framedemo -- # break main.add1, then stack / locals / regs
package main

import "fmt"

//go:noinline
func add1(x int) int {
	local := x + 1
	return local
}

func main() {
	a := 41
	b := add1(a)
	fmt.Printf("%d\n", b)
}
