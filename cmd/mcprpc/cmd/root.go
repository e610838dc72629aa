// Package cmd provides the mcprpc CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/viant/mcprpc/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcprpc",
	Short: "MCP JSON-RPC 2.0 client/server runtime",
	Long: `mcprpc runs and exercises a Model Context Protocol JSON-RPC 2.0 runtime.

Configuration is loaded from mcprpc.yaml in the current directory or
$HOME/.mcprpc, or from the file passed via --config. Environment variables
prefixed MCPRPC_ override config values, e.g. MCPRPC_HTTP_BASE_URL.

Commands:
  serve stdio   Run a demo MCP server over stdio
  serve http    Run a demo MCP server over streamable HTTP
  call          Drive a demo MCP client against a running server
  version       Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcprpc.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
