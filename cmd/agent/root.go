// Package main implements the agent's CLI entry point, grounded on
// cmd/list.go and cmd/run.go's spf13/cobra layout in the runc-go teacher
// reference pulled from the rest of the example pack.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Host-resident SSH brute-force and TCP scan/flood detector",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
