package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdziat/durable-training-queue/internal/app"
	"github.com/jdziat/durable-training-queue/internal/config"
)

// cli carries global flags and the lazily opened app.
type cli struct {
	cfgFile      string
	queueName    string
	outputFormat string

	out    io.Writer
	errOut io.Writer

	// newApp opens the app; replaced in tests.
	newApp func(ctx context.Context, cfg *config.Config) (*app.App, error)
	app    *app.App
}

func newRootCmd() *cobra.Command {
	return newCLI(os.Stdout, os.Stderr).command()
}

func newCLI(out, errOut io.Writer) *cli {
	c := &cli{out: out, errOut: errOut}
	c.newApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		return app.New(ctx, cfg, app.NewLogger(cfg.Log, c.errOut))
	}
	return c
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "trainq",
		Short:         "Durable training-job queue",
		Long:          `trainq submits training jobs to a durable queue and launches them one at a time on an external compute service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			err := c.app.Close()
			c.app = nil
			return err
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ./trainq.yaml or $HOME/.trainq/trainq.yaml)")
	root.PersistentFlags().StringVarP(&c.queueName, "queue", "q", "", "queue name (overrides queue.name)")
	root.PersistentFlags().StringVarP(&c.outputFormat, "output", "o", "table", "output format: table or json")

	root.AddCommand(
		c.enqueueCmd(),
		c.tickCmd(),
		c.deleteCmd(),
		c.retryCmd(),
		c.cancelCmd(),
		c.startCmd(),
		c.stopCmd(),
		c.statusCmd(),
		c.historyCmd(),
		c.runCmd(),
	)
	return root
}

// open loads configuration and wires the app once per invocation.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return nil, err
	}
	if c.queueName != "" {
		cfg.Queue.Name = c.queueName
	}
	a, err := c.newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) jsonOutput() bool {
	return c.outputFormat == "json"
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
