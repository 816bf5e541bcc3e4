package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kiln/internal/catalog"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job's record, assets, and diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				job, err := resolveJob(cmd.Context(), store, strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("no job matches %q", args[0])
				}

				out := cmd.OutOrStdout()
				colorize := isTerminal(out)

				kind := statusOK
				switch job.Status {
				case catalog.StatusFailed:
					kind = statusError
				case catalog.StatusCancelled:
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Job", kind, job.ID, colorize))
				if job.Label != "" {
					fmt.Fprintln(out, renderStatusLine("Label", statusInfo, job.Label, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Status", kind,
					fmt.Sprintf("%s (success: %s)", job.Status, yesNo(job.Success)), colorize))
				if job.OutputDir != "" {
					fmt.Fprintln(out, renderStatusLine("Output", statusInfo, job.OutputDir, colorize))
				}
				if job.ManifestPath != "" {
					fmt.Fprintln(out, renderStatusLine("Manifest", statusInfo, job.ManifestPath, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Cooked", statusInfo,
					fmt.Sprintf("%d textures, %d buffers, %d assets (%d deduplicated)",
						job.Textures, job.Buffers, job.Assets, job.Deduplicated), colorize))
				fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatDuration(job.Duration), colorize))
				fmt.Fprintln(out, renderStatusLine("Finished", statusInfo,
					job.FinishedAt.Local().Format("2006-01-02 15:04:05"), colorize))

				assets, err := store.AssetsForJob(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				if len(assets) > 0 {
					rows := make([][]string, 0, len(assets))
					for _, a := range assets {
						rows = append(rows, []string{
							a.Key,
							a.Kind,
							a.TableName,
							fmt.Sprint(a.Index),
							a.Source,
						})
					}
					fmt.Fprintln(out, renderTable([]string{"Key", "Kind", "Table", "Index", "Source"}, rows, 3))
				}

				diags, err := store.DiagnosticsForJob(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				for _, d := range diags {
					fmt.Fprintln(out, renderStatusLine("Diagnostic", severityKind(d.Severity), d.String(), colorize))
				}
				return nil
			})
		},
	}
}

// resolveJob finds a job by full id first, then by unique id prefix so the
// short ids printed in listings work as arguments.
func resolveJob(ctx context.Context, store *catalog.Store, idArg string) (*catalog.Job, error) {
	if idArg == "" {
		return nil, fmt.Errorf("job id is required")
	}
	job, err := store.GetJob(ctx, idArg)
	if err != nil || job != nil {
		return job, err
	}

	jobs, err := store.ListJobs(ctx, 0)
	if err != nil {
		return nil, err
	}
	var match *catalog.Job
	for _, j := range jobs {
		if strings.HasPrefix(j.ID, idArg) {
			if match != nil {
				return nil, fmt.Errorf("job id %q is ambiguous", idArg)
			}
			match = j
		}
	}
	return match, nil
}
