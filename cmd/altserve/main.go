// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// altserve is a line-delimited JSON-RPC tool server over the Altium
// library codec: one request per stdin line, one response per stdout
// line, until EOF.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	altium "github.com/saferwall/altium"
	"github.com/saferwall/altium/log"
)

func main() {
	var (
		verbosity   int
		quiet       bool
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:   "altserve [config]",
		Short: "Tool server for Altium PcbLib/SchLib libraries.",
		Long: `altserve speaks line-delimited JSON-RPC 2.0 on stdin/stdout and exposes
read, write, mutation and export tools over PcbLib footprint libraries and
SchLib symbol libraries. The optional positional argument points at a JSON
configuration file; the default is ~/.altserve/config.json.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println("altserve " + altium.Version)
				return nil
			}

			cfgPath := defaultConfigPath()
			explicit := false
			if len(args) == 1 {
				cfgPath = args[0]
				explicit = true
			}
			cfg, err := loadConfig(cfgPath, explicit)
			if err != nil {
				return err
			}

			level := log.ParseLevel(cfg.Logging.Level)
			switch {
			case quiet:
				level = log.LevelError
			case verbosity == 1:
				level = log.LevelInfo
			case verbosity == 2:
				level = log.LevelDebug
			case verbosity >= 3:
				level = log.LevelTrace
			}
			logger := log.NewFilter(log.NewStdLogger(os.Stderr),
				log.FilterLevel(level))

			sandbox, err := altium.NewSandbox(cfg.AllowedPaths)
			if err != nil {
				return err
			}
			engine := altium.NewEngine(sandbox, &altium.Options{Logger: logger})
			srv := newServer(engine, os.Stdin, os.Stdout, logger)
			return srv.run()
		},
	}

	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v",
		"increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false,
		"log errors only")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false,
		"print the version and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "altserve:", err)
		os.Exit(1)
	}
}
