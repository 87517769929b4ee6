// Package main is the entry point for the comp CLI.
package main

import (
	"fmt"
	"os"

	"github.com/comp-lang/comp/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cmd.Exit(err)
	}
}
