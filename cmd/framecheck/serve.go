package main

import (
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report history, on-demand verification and metrics over HTTP",
		Long: `Serve exposes:

  GET  /api/reports?limit=N     stored runs, newest first
  GET  /api/reports/files?id=ID one run with its file results
  POST /api/verify              {"directory": "...", "expected": {"K": 2}}
  GET  /api/view                websocket stream of annotated frames
  GET  /logs?level=info         log files
  GET  /metrics                 Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			return env.app.Serve(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 0, "HTTP port (default 8080)")
	flags.StringP("output", "o", "", "Output directory whose labels are verified by default (default ./results)")
	flags.Int("workers", 0, "Files verified in parallel (default 4)")
	flags.Bool("strict", false, "Fail on malformed record lines instead of skipping them")
	flags.String("api-token", "", "Bearer token required on POST endpoints")
	return cmd
}
