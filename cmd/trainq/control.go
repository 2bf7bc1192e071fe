package main

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/scheduler"
)

func (c *cli) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Set the queue running so ticks launch pending entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Queue.SetRunning(cmd.Context(), true); err != nil {
				return err
			}
			c.printf("Queue %s running\n", a.Queue.Name())
			return nil
		},
	}
}

func (c *cli) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop launching; running executions are still polled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Queue.SetRunning(cmd.Context(), false); err != nil {
				return err
			}
			c.printf("Queue %s stopped\n", a.Queue.Name())
			return nil
		},
	}
}

func (c *cli) tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduling step",
		Long:  `Launch the next pending entry when the queue is running, then poll running executions and archive finished ones.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.Scheduler()
			if err != nil {
				return err
			}
			res, err := s.Tick(cmd.Context())
			if res != nil {
				if perr := c.printTick(res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

type tickOutput struct {
	Launched     *core.JobEntry       `json:"launched,omitempty"`
	LaunchError  string               `json:"launch_error,omitempty"`
	Archived     []core.HistoryRecord `json:"archived"`
	Polled       int                  `json:"polled"`
	StatusErrors map[int64]string     `json:"status_errors,omitempty"`
	Saved        bool                 `json:"saved"`
	Running      bool                 `json:"running"`
	SavedAt      int64                `json:"saved_at"`
}

func (c *cli) printTick(res *scheduler.TickResult) error {
	if c.jsonOutput() {
		out := tickOutput{
			Launched: res.Launched,
			Archived: res.Archived,
			Polled:   res.Polled,
			Saved:    res.Saved,
			Running:  res.Running,
			SavedAt:  res.SavedAt,
		}
		if res.LaunchErr != nil {
			out.LaunchError = res.LaunchErr.Error()
		}
		if len(res.StatusErrors) > 0 {
			out.StatusErrors = make(map[int64]string, len(res.StatusErrors))
			for id, err := range res.StatusErrors {
				out.StatusErrors[id] = err.Error()
			}
		}
		return c.printJSON(out)
	}

	switch {
	case res.Launched == nil:
		c.printf("Nothing launched\n")
	case res.LaunchErr != nil:
		c.printf("Launch of entry %d failed: %s\n", res.Launched.ID, res.Launched.Message)
	default:
		c.printf("Launched entry %d as %s\n", res.Launched.ID, res.Launched.ExecutionHandle)
	}
	c.printf("Polled %d, archived %d, status errors %d, running=%t\n",
		res.Polled, len(res.Archived), len(res.StatusErrors), res.Running)
	return nil
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the queue's entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.Queue.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(p)
			}

			saved := "never"
			if p.SavedAt > 0 {
				saved = time.Unix(0, p.SavedAt).UTC().Format(time.RFC3339)
			}
			c.printf("Queue %s: running=%t, %d entries, saved %s by %s\n",
				p.Name, p.Running, len(p.Entries), saved, p.SavedBy)

			table := tablewriter.NewWriter(c.out)
			table.Header("ID", "Status", "Country", "Revision", "Timestamp", "Execution", "Message")
			for _, e := range p.Entries {
				_ = table.Append(
					fmt.Sprint(e.ID),
					string(e.Status),
					e.Params.Country,
					e.Params.Revision,
					e.Timestamp,
					e.ExecutionHandle,
					e.Message,
				)
			}
			return table.Render()
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		countries []string
		states    []string
		since     time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			filter := core.HistoryFilter{Countries: countries, Limit: limit}
			for _, s := range states {
				filter.States = append(filter.States, core.EntryStatus(s))
			}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}

			recs, err := a.History.QueryRecent(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(recs)
			}

			table := tablewriter.NewWriter(c.out)
			table.Header("Entry", "Queue", "State", "Country", "Revision", "Duration", "Output", "Recorded")
			for _, r := range recs {
				_ = table.Append(
					fmt.Sprint(r.EntryID),
					r.QueueName,
					string(r.State),
					r.Params.Country,
					r.Params.Revision,
					time.Duration(r.Duration * float64(time.Second)).Round(time.Second).String(),
					r.OutputLocation,
					r.RecordedAt.UTC().Format(time.RFC3339),
				)
			}
			return table.Render()
		},
	}
	cmd.Flags().StringSliceVar(&countries, "country", nil, "filter by country (repeatable)")
	cmd.Flags().StringSliceVar(&states, "state", nil, "filter by final state (SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().DurationVar(&since, "since", 0, "only records newer than this (e.g. 72h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}
