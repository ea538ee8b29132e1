package main

import (
	"github.com/caffeineduck/fnhost/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the function host",
		Long: `Run the function host until interrupted.

Endpoints:
  POST /v2/specialize  Load {"filepath", "functionName"} as the active function
  POST /specialize     Load the configured code path and entry point
  ANY  /...            Invoke the active function
  GET  /healthz        Readiness probe
  GET  /v2/status      Host state as JSON
  GET  /metrics        Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "Listen address (default :8888)")
	cmd.Flags().String("code-path", "", "Artifact location for /specialize (default /userfunc/user)")
	cmd.Flags().String("entrypoint", "", "Entry point for /specialize")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	addRuntimeFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Listen = v
	}
	if v, _ := cmd.Flags().GetString("code-path"); v != "" {
		cfg.CodePath = v
	}
	if v, _ := cmd.Flags().GetString("entrypoint"); v != "" {
		cfg.EntryPoint = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app := fx.New(server.Module(cfg))
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
