// Command hlolower lowers HLO elementwise computations to eltwise IR and
// evaluates them.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/roach88/hlolower/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the root command and returns the process exit code.
// Failures a command already wrote to its output are not printed again.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil && !cli.AlreadyReported(err) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return cli.GetExitCode(err)
}
