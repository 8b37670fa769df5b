// Package main is the entry point for the slpd UDP virtual-LAN relay.
package main

import (
	"fmt"
	"os"

	"github.com/lanplay/slpd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
