// Package main provides cachesim, a tool that runs synthetic multi-core
// workloads over a compressed cache hierarchy.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
