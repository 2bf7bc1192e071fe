package main

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := cast.ToInt64E(a)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid entry id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Remove entries from the queue",
		Long:  `Remove PENDING, ERROR, CANCELLED or FAILED entries. Entries that are launching or running are never removed.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Queue.Delete(cmd.Context(), ids)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(res)
			}
			c.printf("Deleted: %v\n", res.Deleted)
			if len(res.Blocked) > 0 {
				c.printf("Blocked (active): %v\n", res.Blocked)
			}
			if len(res.Missing) > 0 {
				c.printf("Not found: %v\n", res.Missing)
			}
			return nil
		},
	}
}

func (c *cli) retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry ID...",
		Short: "Return ERROR, FAILED or CANCELLED entries to PENDING",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Queue.Retry(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return c.printTransition("Requeued", res.Updated, res.Skipped, res.Missing, res)
		},
	}
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID...",
		Short: "Mark PENDING entries as CANCELLED",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Queue.Cancel(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return c.printTransition("Cancelled", res.Updated, res.Skipped, res.Missing, res)
		},
	}
}

func (c *cli) printTransition(verb string, updated, skipped, missing []int64, raw any) error {
	if c.jsonOutput() {
		return c.printJSON(raw)
	}
	c.printf("%s: %v\n", verb, updated)
	if len(skipped) > 0 {
		c.printf("Skipped (wrong status): %v\n", skipped)
	}
	if len(missing) > 0 {
		c.printf("Not found: %v\n", missing)
	}
	return nil
}
