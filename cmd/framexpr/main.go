package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "framexpr",
	Short: "Drive a FRAM expression-engine model",
	Long: "framexpr compiles and evaluates FRAM function/coupling/aspect models: " +
		"run a whole model to a fixed number of cycles, evaluate one ad-hoc " +
		"expression, or serve a run with a live WebSocket feed of its results.",
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
