// Package main provides the entry point for the amanmcpcore CLI.
package main

import (
	"os"

	"github.com/amanmcp-core/amanmcp-core/cmd/amanmcpcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
