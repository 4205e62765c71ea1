// Package main provides the entry point for the codesmith CLI tool.
package main

import (
	"fmt"
	"log"
	"net/http"
	nethttppprof "net/http/pprof"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesmith-dev/codesmith/cmd/codesmith/commands"
	"github.com/codesmith-dev/codesmith/pkg/version"
)

// pprofReadHeaderTimeout is the read header timeout for the pprof HTTP server.
const pprofReadHeaderTimeout = 10 * time.Second

var (
	verbose bool
	quiet   bool
)

func main() {
	// Start pprof HTTP server on localhost:6060 with explicit handler
	// registration (avoids gosec G108: DefaultServeMux exposure) and
	// read header timeout (avoids gosec G114: no timeouts).
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", nethttppprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", nethttppprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", nethttppprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", nethttppprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", nethttppprof.Trace)
		server := &http.Server{
			Addr:              "localhost:6060",
			Handler:           mux,
			ReadHeaderTimeout: pprofReadHeaderTimeout,
		}
		log.Println(server.ListenAndServe())
	}()

	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "codesmith",
		Short: "codesmith - bulk code editing and streaming transform tool",
		Long: `codesmith provides bulk code editing, rollback, and chunked
streaming-transform capabilities, exposed both as an MCP server for AI
agent integration and as a standalone CLI.

Commands:
  mcp       Start the Model Context Protocol server on stdio transport
  validate  Validate a bulk-edit operation locally without applying it`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "codesmith %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
