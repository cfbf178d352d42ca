// The main package for the rosterctl executable.
package main

import (
	"github.com/JakeFAU/rosterctl/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
