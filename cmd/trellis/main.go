// Trellis: task hierarchy reconstruction and indexing MCP server.
//
// Trellis scans agent task transcripts, rebuilds the parent/child
// hierarchy from delegation text, and indexes task content into a
// vector store for semantic search.
//
// Usage:
//
//	trellis serve    # Start MCP server (stdio transport)
//	trellis update   # Update to the latest version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	trellisserver "github.com/trellis-dev/trellis/internal/server"
	"github.com/trellis-dev/trellis/internal/updater"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("trellis v%s\n", trellisserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := trellisserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check — prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Best-effort — network failures
// are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(trellisserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s -> v%s\n"+
				"  Run: trellis update\n"+
				"  Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "Checking for updates...\n")

	result := updater.CheckVersion(trellisserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "Downloading...\n")

	if err := updater.SelfUpdate(trellisserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\n  You can download manually from:\n  %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart trellis to use the new version.\n", result.LatestVersion)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Trellis v%s — task hierarchy reconstruction MCP server

Usage:
  trellis serve    Start the MCP server (stdio transport)
  trellis update   Update to the latest version

Configuration (environment variables):
  TRELLIS_SCAN_ROOT           Transcript directory (default ~/.trellis/transcripts)
  TRELLIS_DATA_DIR            Journal directory (default ~/.trellis)
  TRELLIS_EMBEDDING_API_KEY   Enables the indexing subsystem
  TRELLIS_EMBEDDING_BASE_URL  Custom embedding endpoint
  TRELLIS_EMBEDDING_MODEL     Embedding model (default text-embedding-3-small)
  TRELLIS_EMBEDDING_DIM       Vector dimension (default 1536)
  TRELLIS_STORE_URL           Vector store URL (default http://localhost:6333)
  TRELLIS_STORE_COLLECTION    Collection name (default trellis_chunks)
  TRELLIS_STRICT_RESOLVE      Disable heuristic disambiguation (default false)

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "trellis": {
        "command": "trellis",
        "args": ["serve"]
      }
    }
  }
`, trellisserver.Version)
}
