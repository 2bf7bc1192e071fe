package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jdziat/durable-training-queue/pkg/queue"
)

func (c *cli) enqueueCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "enqueue -f FILE",
		Short: "Submit rows of job parameters",
		Long: `Submit a YAML or JSON list of job parameter rows. Rows already queued or
already completed with identical parameters are rejected. Use "-f -" to read stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readRows(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Queue.Enqueue(cmd.Context(), rows)
			if err != nil {
				return err
			}
			return c.printEnqueue(res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "rows file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readRows decodes a list of rows, or a document with a top-level "rows" list.
func readRows(path string, stdin io.Reader) ([]map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var rows []map[string]any
	if err := yaml.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}
	var doc struct {
		Rows []map[string]any `yaml:"rows"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	return doc.Rows, nil
}

func (c *cli) printEnqueue(res *queue.EnqueueResult) error {
	if c.jsonOutput() {
		return c.printJSON(res)
	}

	c.printf("Accepted %d, rejected %d\n", len(res.Accepted), len(res.Rejected))
	if len(res.Accepted) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("ID", "Country", "Revision", "Data Source")
		for _, e := range res.Accepted {
			_ = table.Append(fmt.Sprint(e.ID), e.Params.Country, e.Params.Revision, e.Params.DataSourceKind())
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	if len(res.Rejected) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Row", "Reason", "Detail")
		for _, r := range res.Rejected {
			_ = table.Append(fmt.Sprint(r.Index), string(r.Reason), r.Detail)
		}
		return table.Render()
	}
	return nil
}
