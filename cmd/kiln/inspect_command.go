package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kiln/internal/emit"
	"kiln/internal/manifest"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <output-dir>",
		Short: "Decode a cooked output directory's manifest and tables",
		Args:  cobra.ExactArgs(1),
		Annotations: map[string]string{
			"skipConfigLoad": "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			m, err := manifest.Read(filepath.Join(dir, manifest.FileName))
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			kind := statusOK
			message := "cooked successfully"
			if !m.Success {
				kind = statusError
				message = "recorded a failed run"
			}
			fmt.Fprintln(out, renderStatusLine("Manifest", kind, message, colorize))
			fmt.Fprintln(out, renderStatusLine("Created", statusInfo,
				m.Created.Local().Format("2006-01-02 15:04:05"), colorize))
			fmt.Fprintln(out, renderStatusLine("Contents", statusInfo,
				fmt.Sprintf("%d files, %d assets", len(m.Files), len(m.Assets)), colorize))

			if len(m.Files) > 0 {
				rows := make([][]string, 0, len(m.Files))
				for _, f := range m.Files {
					rows = append(rows, []string{
						f.Path,
						roleName(f.Role),
						humanize.IBytes(f.Size),
						verifyFile(dir, f),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"File", "Role", "Size", "Check"}, rows, 2))
			}

			if len(m.Assets) > 0 {
				rows := make([][]string, 0, len(m.Assets))
				for _, a := range m.Assets {
					rows = append(rows, []string{
						a.Key,
						kindName(a.Kind),
						manifestTableName(a.Table),
						fmt.Sprint(a.Index),
						hex.EncodeToString(a.Sig[:8]),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Key", "Kind", "Table", "Index", "Signature"}, rows, 3))
			}

			for _, name := range []string{emit.TextureTableName, emit.BufferTableName, emit.AssetTableName} {
				path := filepath.Join(dir, name)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				table, err := emit.ReadTable(path)
				if err != nil {
					fmt.Fprintln(out, renderStatusLine(name, statusError, err.Error(), colorize))
					continue
				}
				fmt.Fprintln(out, renderStatusLine(name, statusOK,
					fmt.Sprintf("%d records, %d bytes each", table.Count, table.RecordSize), colorize))
			}
			return nil
		},
	}
}

// verifyFile compares a manifest entry against what is actually on disk.
func verifyFile(dir string, f manifest.File) string {
	info, err := os.Stat(filepath.Join(dir, f.Path))
	if err != nil {
		return "missing"
	}
	if uint64(info.Size()) != f.Size {
		return fmt.Sprintf("size %d, want %d", info.Size(), f.Size)
	}
	return "ok"
}
