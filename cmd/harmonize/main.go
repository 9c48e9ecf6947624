package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bizmatters/code-harmonizer/internal/app"
	"github.com/bizmatters/code-harmonizer/internal/config"
)

func main() {
	root, err := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the streams and configuration shared by every command
type cli struct {
	v   *viper.Viper
	in  io.Reader
	out io.Writer
	err io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) (*cobra.Command, error) {
	v, err := config.NewViper()
	if err != nil {
		return nil, err
	}
	// the CLI writes results to stdout, so keep logs quiet unless asked
	v.SetDefault("log-level", "warn")

	c := &cli{v: v, in: in, out: out, err: errOut}

	root := &cobra.Command{
		Use:   "harmonize",
		Short: "Code Harmonizer CLI",
		Long: `Code Harmonizer rewrites source code according to selected intentions.
- Source: the code in the workspace (harmonize source).
- Intentions: the improvements to apply, chosen from a fixed catalog (harmonize intentions, harmonize select).
- Run: analysis, validation, one step per intention, integration and finalization (harmonize run).
- Audit: every run leaves a record that can be exported or rolled back (harmonize export, harmonize rollback).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.Bool("json", false, "output JSON")
	flags.String("kv-backend", "", "kv backend: memory, sqlite, postgres or redis")
	flags.String("kv-path", "", "sqlite file for the sqlite backend")
	flags.String("llm-mode", "", "language model adapter: mock, remote or genai")
	flags.String("llm-url", "", "completion endpoint for the remote adapter")
	flags.String("log-level", "", "log level")
	for _, name := range []string{"json", "kv-backend", "kv-path", "llm-mode", "llm-url", "log-level"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return nil, err
		}
	}

	root.AddCommand(
		c.intentionsCmd(),
		c.sourceCmd(),
		c.selectCmd(),
		c.statusCmd(),
		c.runCmd(),
		c.exportCmd(),
		c.rollbackCmd(),
		c.resetCmd(),
	)
	return root, nil
}

// withComponents builds the application for one command and releases it
// afterwards
func (c *cli) withComponents(ctx context.Context, fn func(context.Context, *app.Components) error) error {
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	logger, err := app.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(ctx, components)
}

func (c *cli) jsonOutput() bool {
	return c.v.GetBool("json")
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
