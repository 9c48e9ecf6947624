package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bizmatters/code-harmonizer/internal/app"
	"github.com/bizmatters/code-harmonizer/internal/audit"
	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/intentions"
	"github.com/bizmatters/code-harmonizer/internal/session"
)

func (c *cli) intentionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intentions",
		Short: "List the intention catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				items := comp.Catalog.List()
				if c.jsonOutput() {
					return c.printJSON(items)
				}
				selected := make(map[string]bool)
				for _, id := range comp.Workspace.Selection() {
					selected[id] = true
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(c.out)
				tw.AppendHeader(table.Row{"ID", "Name", "Category", "Selected"})
				for _, it := range items {
					mark := ""
					if selected[it.ID] {
						mark = "*"
					}
					tw.AppendRow(table.Row{it.ID, it.Name, intentions.CategoryLabel(it.Category), mark})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func (c *cli) sourceCmd() *cobra.Command {
	var sample bool
	cmd := &cobra.Command{
		Use:   "source [file|-]",
		Short: "Show or replace the workspace source code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				ws := comp.Workspace
				switch {
				case sample:
					ws.LoadSample(ctx)
				case len(args) == 1:
					code, err := c.readSource(args[0])
					if err != nil {
						return err
					}
					ws.SetSource(ctx, code)
				}
				if c.jsonOutput() {
					return c.printJSON(map[string]string{"sourceCode": ws.Source()})
				}
				fmt.Fprintln(c.out, ws.Source())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "load the sample source code")
	return cmd
}

func (c *cli) selectCmd() *cobra.Command {
	var all, clearAll bool
	var toggle []string
	cmd := &cobra.Command{
		Use:   "select [intention-id...]",
		Short: "Show or change the selected intentions",
		Long:  "With ids, replaces the selection. --all, --clear and --toggle adjust it instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				ws := comp.Workspace
				switch {
				case clearAll:
					ws.ClearAll(ctx)
				case all:
					ws.SelectAll(ctx)
				case len(args) > 0:
					if err := ws.SetSelection(ctx, args); err != nil {
						return err
					}
				}
				for _, id := range toggle {
					if _, err := ws.Toggle(ctx, id); err != nil {
						return err
					}
				}
				selection := ws.Selection()
				if c.jsonOutput() {
					return c.printJSON(map[string][]string{"selection": selection})
				}
				if len(selection) == 0 {
					fmt.Fprintln(c.out, "no intentions selected")
					return nil
				}
				fmt.Fprintln(c.out, strings.Join(selection, "\n"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "select every intention")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "clear the selection")
	cmd.Flags().StringSliceVar(&toggle, "toggle", nil, "toggle these intention ids")
	cmd.MarkFlagsMutuallyExclusive("all", "clear")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the workspace state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				snap := comp.Workspace.Snapshot()
				if c.jsonOutput() {
					return c.printJSON(snap)
				}
				keys, err := comp.Workspace.StoredKeys(ctx)
				if err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(c.out)
				tw.AppendRow(table.Row{"Source lines", countLines(snap.SourceCode)})
				tw.AppendRow(table.Row{"Intentions", strings.Join(snap.Selection, ", ")})
				ready := "yes"
				if !snap.Readiness.Ready {
					ready = "no: " + snap.Readiness.Message
				}
				tw.AppendRow(table.Row{"Ready", ready})
				last := "none"
				if snap.Audit != nil {
					last = snap.Audit.Timestamp
				}
				tw.AppendRow(table.Row{"Last run", last})
				stored := "none"
				if len(keys) > 0 {
					stored = strings.Join(keys, ", ")
				}
				tw.AppendRow(table.Row{"Stored keys", stored})
				tw.Render()
				return nil
			})
		},
	}
}

func (c *cli) runCmd() *cobra.Command {
	var file string
	var ids []string
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harmonize the workspace source",
		Long:  "Runs the pipeline and prints the harmonized code. --file and --intentions update the workspace first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if delay > 0 {
				c.v.Set("step-delay", delay)
			}
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				var overrides session.Overrides
				if file != "" {
					code, err := c.readSource(file)
					if err != nil {
						return err
					}
					overrides.SourceCode = &code
				}
				if len(ids) > 0 {
					overrides.Intentions = ids
				}

				var observe harmonization.ProgressFunc
				if !c.jsonOutput() {
					observe = c.progressPrinter()
				}
				result, err := comp.Workspace.HarmonizeWith(ctx, overrides, observe)
				if err != nil {
					var notReady *harmonization.NotReadyError
					if errors.As(err, &notReady) {
						return errors.New(notReady.Readiness.Message)
					}
					return err
				}

				if c.jsonOutput() {
					return c.printJSON(result)
				}
				fmt.Fprintln(c.out, result.HarmonizedCode)
				if result.NoOp {
					fmt.Fprintln(c.err, "no transformation rule changed the code")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read source code from this file (- for stdin)")
	cmd.Flags().StringSliceVarP(&ids, "intentions", "i", nil, "intention ids to apply")
	cmd.Flags().DurationVar(&delay, "step-delay", 0, "pause between progress ticks")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest audit record",
		Long:  "Writes the audit record to --output, or to harmonization-audit-<millis>.<ext> in the current directory. Use -o - for stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := audit.ParseFormat(format)
			if err != nil {
				return err
			}
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				export, err := comp.Workspace.Audit().Export(f, time.Now())
				if err != nil {
					if errors.Is(err, audit.ErrNoRecord) {
						return errors.New("no audit record; run a harmonization first")
					}
					return err
				}
				if output == "-" {
					_, err := c.out.Write(export.Data)
					return err
				}
				path := output
				if path == "" {
					path = export.Filename
				}
				if err := os.WriteFile(path, export.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintln(c.out, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func (c *cli) rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Discard the latest result and audit record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				comp.Workspace.Rollback(ctx)
				fmt.Fprintln(c.out, "rolled back")
				return nil
			})
		},
	}
}

func (c *cli) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear source, selection, result and audit record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withComponents(cmd.Context(), func(ctx context.Context, comp *app.Components) error {
				comp.Workspace.Reset(ctx)
				fmt.Fprintln(c.out, "workspace reset")
				return nil
			})
		},
	}
}

// progressPrinter writes one line to stderr each time a step changes status
func (c *cli) progressPrinter() harmonization.ProgressFunc {
	seen := make(map[string]harmonization.StepStatus)
	return func(p harmonization.Progress) {
		for _, s := range p.Steps {
			if seen[s.ID] == s.Status || s.Status == harmonization.StepPending {
				continue
			}
			seen[s.ID] = s.Status
			fmt.Fprintf(c.err, "[%3.0f%%] %-40s %s\n", p.Overall, s.Name, s.Status)
		}
	}
}

func (c *cli) readSource(name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(c.in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
