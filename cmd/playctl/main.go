// Command playctl runs playground sources and inspects the question
// catalog from a terminal.
//
// Usage:
//
//	playctl run app.jsx --ui --html
//	playctl run --question implement-a-debounce-function
//	playctl bench loop.js -n 50
//	playctl catalog --challenges
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFault) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
