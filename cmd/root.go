// Package cmd implements CLI commands using the cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "slpd",
	Short:   "slpd - a UDP virtual-LAN relay for Switch LAN-play",
	Version: "0.1.0",
	Long: `slpd relays UDP datagrams between clients that believe they share a
physical LAN segment. It reassembles fragmented IPv4 frames, routes by
virtual-LAN address, fans out broadcast traffic, and runs a small fixed
pipeline of plugins (traffic accounting, port blocking, LDN room
discovery) over every frame it forwards.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and env vars apply if omitted)")

	rootCmd.AddCommand(serveCmd)
}
