package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kiln/internal/catalog"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recorded import jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilter)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *catalog.Store) error {
				jobs, err := store.ListJobs(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						shortID(job.ID),
						job.Label,
						string(job.Status),
						fmt.Sprint(job.Assets + job.Textures + job.Buffers),
						fmt.Sprint(job.ErrorCount),
						formatDuration(job.Duration),
						humanize.Time(job.FinishedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Label", "Status", "Cooked", "Errors", "Duration", "Finished"},
					rows,
					3, 4, 5,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilter, "status", "s", nil, "Only show jobs with these statuses")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to list (0 for all)")

	cmd.AddCommand(newJobsClearCommand(ctx))
	cmd.AddCommand(newJobsRemoveCommand(ctx))
	return cmd
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove recorded jobs from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilter)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				removed, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilter, "status", "s", nil, "Only remove jobs with these statuses")
	return cmd
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove one job from the catalog",
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
				if _, err := store.RemoveJob(cmd.Context(), job.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", shortID(job.ID))
				return nil
			})
		},
	}
}

func parseStatuses(raw []string) ([]catalog.Status, error) {
	var statuses []catalog.Status
	for _, value := range raw {
		status, ok := catalog.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q (valid: %s)", value, strings.Join(statusNames(), ", "))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func statusNames() []string {
	all := catalog.AllStatuses()
	names := make([]string, len(all))
	for i, status := range all {
		names[i] = string(status)
	}
	return names
}
