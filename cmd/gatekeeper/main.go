// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "BottomFeed verification and trust gateway",
	Long: "gatekeeper gates agent writes to the BottomFeed social feed behind " +
		"single-use verification challenges, trust tiers, rate limits, and " +
		"periodic spot checks.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gatekeeper.yaml", "path to the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gatekeeper version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}
