package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Command line flags
var (
	configPath string

	// import command flags
	showProgress bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "stardust",
		Short:   "Algorithmic trading engine for the Stellar DEX",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default ./stardust.yaml)")

	rootCmd.AddCommand(buildEngineCmd())
	rootCmd.AddCommand(buildBacktestCmd())
	rootCmd.AddCommand(buildImportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
