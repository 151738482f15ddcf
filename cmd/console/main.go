// console is the operator CLI for the radiology analysis service.
//
// Usage:
//
//	console dashboard
//	console report <case-id>
//	console status [--watch] [--interval=5s]
//	console analyze --file=<image> [--type=pneumonia] [--open-report]
//	console events [--brokers=host:9092]
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
