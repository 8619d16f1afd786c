// Command dbstore inspects and edits documents kept by a dbstore engine.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/dbstore/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Command errors were already reported through the output formatter.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
