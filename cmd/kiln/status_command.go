package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kiln/internal/catalog"
	"kiln/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report readiness of the cooking environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			fmt.Fprintln(out, renderSectionHeader("Readiness", colorize))
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Import service", colorize))
			probe := preflight.ProbeLock(cfg)
			lockKind := statusInfo
			if probe.Active {
				lockKind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Lock", lockKind, probe.Detail(), colorize))

			// The readiness lines above already describe a missing or broken
			// catalog, so the summary only renders when the database is usable.
			if !preflight.Passed(results) {
				return nil
			}
			if _, err := os.Stat(cfg.CatalogPath()); err != nil {
				return nil
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return nil
			}
			defer store.Close()

			health, err := store.Health(cmd.Context())
			if err != nil {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Catalog", colorize))
			rows := [][]string{
				{"Complete", fmt.Sprint(health.Complete)},
				{"Failed", fmt.Sprint(health.Failed)},
				{"Cancelled", fmt.Sprint(health.Cancelled)},
				{"Total", fmt.Sprint(health.Total)},
			}
			fmt.Fprintln(out, renderTable([]string{"Outcome", "Jobs"}, rows, 1))
			if latest, err := store.ListJobs(cmd.Context(), 1); err == nil && len(latest) > 0 {
				job := latest[0]
				fmt.Fprintln(out, renderStatusLine("Last job", statusInfo,
					fmt.Sprintf("%s %s %s", shortID(job.ID), job.Status, humanize.Time(job.FinishedAt)), colorize))
			}
			return nil
		},
	}
}
