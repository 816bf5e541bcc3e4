package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kiln/internal/bakefile"
	"kiln/internal/catalog"
	"kiln/internal/importer"
)

func newCookCommand(ctx *commandContext) *cobra.Command {
	var labelFlag string

	cmd := &cobra.Command{
		Use:   "cook <bakefile>",
		Short: "Cook a bakefile into the output root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			req, err := bakefile.Load(args[0])
			if err != nil {
				return fmt.Errorf("load bakefile: %w", err)
			}
			if strings.TrimSpace(labelFlag) != "" {
				req.Label = strings.TrimSpace(labelFlag)
			}
			if req.Label == "" {
				req.Label = filepath.Base(args[0])
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := catalog.Open(cfg)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close()

			svc, err := importer.New(cfg, importer.WithLogger(ctx.fileLogger()), importer.WithStore(store))
			if err != nil {
				return err
			}
			if err := svc.Start(runCtx); err != nil {
				return err
			}
			defer func() {
				_ = svc.Stop(context.Background())
			}()

			out := cmd.OutOrStdout()
			progress := newProgressPrinter(out)
			done := make(chan *importer.Report, 1)

			id, err := svc.SubmitImport(req,
				func(rep *importer.Report) { done <- rep },
				importer.WithProgress(progress.update),
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Cooking %s (job %s, %d items)\n", req.Label, shortID(string(id)), len(req.Items))

			rep := <-done
			progress.finish()
			renderReport(out, rep, isTerminal(out))

			if rep.Cancelled {
				return context.Canceled
			}
			if !rep.Success {
				return fmt.Errorf("import %s failed", shortID(string(rep.JobID)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&labelFlag, "label", "l", "", "Label recorded for this job (defaults to the bakefile label)")
	return cmd
}

func renderReport(out io.Writer, rep *importer.Report, colorize bool) {
	kind := statusOK
	switch {
	case rep.Cancelled:
		kind = statusWarn
	case !rep.Success:
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Job", kind,
		fmt.Sprintf("%s (%s in %s)", rep.JobID, rep.Status, formatDuration(rep.Duration)), colorize))

	if rep.OutputDir != "" {
		fmt.Fprintln(out, renderStatusLine("Output", statusInfo, rep.OutputDir, colorize))
	}
	if rep.ManifestPath != "" {
		fmt.Fprintln(out, renderStatusLine("Manifest", statusInfo, rep.ManifestPath, colorize))
	}

	if len(rep.Files) > 0 {
		rows := make([][]string, 0, len(rep.Files))
		for _, f := range rep.Files {
			rows = append(rows, []string{roleName(f.Role), filepath.Base(f.Path), humanize.IBytes(f.Size)})
		}
		fmt.Fprintln(out, renderTable([]string{"Role", "File", "Size"}, rows, 2))
	}

	if rep.Counts.Tracked > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Textures", "Buffers", "Assets", "Tracked", "Deduplicated"},
			[][]string{{
				fmt.Sprint(rep.Counts.Textures),
				fmt.Sprint(rep.Counts.Buffers),
				fmt.Sprint(rep.Counts.Assets),
				fmt.Sprint(rep.Counts.Tracked),
				fmt.Sprint(rep.Counts.Deduplicated),
			}},
			0, 1, 2, 3, 4,
		))
	}

	for _, d := range rep.Diagnostics {
		fmt.Fprintln(out, renderStatusLine("Diagnostic", severityKind(d.Severity), d.String(), colorize))
	}
}

// progressPrinter rewrites one status line on terminals and prints plain
// lines otherwise, so CI logs stay readable.
type progressPrinter struct {
	out    io.Writer
	tty    bool
	active bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, tty: isTerminal(out)}
}

func (p *progressPrinter) update(ev importer.Progress) {
	var line string
	switch ev.Status {
	case importer.StatusParsing:
		line = fmt.Sprintf("planning %d items", ev.Total)
	case importer.StatusWriting:
		line = "finalizing output"
	default:
		line = fmt.Sprintf("cooked %d/%d", ev.Completed, ev.Total)
		if ev.Item != "" {
			line += " " + ev.Item
		}
	}
	if p.tty {
		fmt.Fprintf(p.out, "\r\x1b[2K%s%s", statusIndent, line)
		p.active = true
		return
	}
	fmt.Fprintf(p.out, "%s%s\n", statusIndent, line)
}

func (p *progressPrinter) finish() {
	if p.tty && p.active {
		fmt.Fprint(p.out, "\r\x1b[2K")
		p.active = false
	}
}
