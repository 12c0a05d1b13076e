// Command panopticon is the CLI driver: it wires the decoder driver, function
// builder, SSA construction, abstract interpretation, and indirect-jump
// resolver into a runnable analysis over a file on disk, rendering the result
// with package render. The function registry is not used here.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
