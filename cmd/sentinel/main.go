// Sentinel indexes a personal markdown memory corpus and serves
// hybrid search over it, as a CLI and as an MCP stdio server.
package main

import (
	"fmt"
	"os"

	"github.com/moyger/sentinel/cmd/sentinel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
