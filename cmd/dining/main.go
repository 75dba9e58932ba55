// Command dining runs deadlock-free dining philosophers simulations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dining/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
