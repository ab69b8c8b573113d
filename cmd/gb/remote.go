package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gitterbridge/internal/client"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Send an event through the server's relay",
	Long: `Reads a Gitter event as JSON from file (or stdin) and submits it to the
server, which stores the resulting activity or records a rejection.`,
	GroupID: "remote",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		event, err := readEvent(eventPath(args), cmd.InOrStdin())
		if err != nil {
			return err
		}
		out, err := gbClient.Ingest(context.Background(), event)
		if err != nil {
			return fmt.Errorf("ingesting event: %w", err)
		}
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			printOutcome(cmd.OutOrStdout(), out)
		}
		if !out.Accepted {
			return errAbsent
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List stored activities",
	GroupID: "remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		actor, _ := cmd.Flags().GetString("actor")
		sinceFlag, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		req := &client.ListActivitiesRequest{
			TargetID: target,
			ActorID:  actor,
			Limit:    limit,
			Offset:   offset,
		}
		if sinceFlag != "" {
			since, err := parseSince(sinceFlag, time.Now())
			if err != nil {
				return err
			}
			req.Since = &since
		}

		resp, err := gbClient.ListActivities(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing activities: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printRecordTable(cmd.OutOrStdout(), resp.Activities, resp.Total)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show a stored activity",
	GroupID: "remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := gbClient.GetActivity(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting activity %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rec)
		}
		printRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}

var rejectionsCmd = &cobra.Command{
	Use:     "rejections",
	Short:   "List recent events that produced no activity",
	GroupID: "remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		rejs, err := gbClient.ListRejections(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("listing rejections: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rejs)
		}
		printRejectionTable(cmd.OutOrStdout(), rejs)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the gitterbridge service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := gbClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health:  %s\nService: %s\n", resp.Status, resp.ServiceID)
		}

		if resp.Status != "ok" {
			return fmt.Errorf("unhealthy: %s", resp.Status)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("target", "", "filter by room id")
	listCmd.Flags().String("actor", "", "filter by sender id")
	listCmd.Flags().String("since", "", "only activities received after this time (RFC3339 or a duration like 2h)")
	listCmd.Flags().Int("limit", 20, "maximum number of activities to return")
	listCmd.Flags().Int("offset", 0, "offset for pagination")

	rejectionsCmd.Flags().Int("limit", 20, "maximum number of rejections to return")
}

// parseSince accepts an RFC3339 timestamp or a duration counted back from now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid --since %q (want RFC3339 or a duration)", s)
	}
	return now.Add(-d), nil
}
