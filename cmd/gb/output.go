package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/relay"
	"github.com/alfredjeanlab/gitterbridge/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func printOutcome(w io.Writer, out *relay.Outcome) {
	switch {
	case out.Accepted && out.Record != nil:
		fmt.Fprintf(w, "%s %s\n", ui.RenderOutcome(true), ui.RenderAccent(out.Record.ID))
	case out.Rejection != nil:
		fmt.Fprintf(w, "%s %s (%s)", ui.RenderOutcome(false), ui.RenderAccent(out.Rejection.ID), out.Rejection.Stage)
		if out.Rejection.Reason != "" {
			fmt.Fprintf(w, ": %s", out.Rejection.Reason)
		}
		fmt.Fprintln(w)
	default:
		fmt.Fprintln(w, ui.RenderOutcome(out.Accepted))
	}
}

func printRecord(w io.Writer, rec *model.ActivityRecord) {
	fmt.Fprintf(w, "ID:        %s\n", ui.RenderAccent(rec.ID))
	if !rec.ReceivedAt.IsZero() {
		fmt.Fprintf(w, "Received:  %s\n", ui.RenderMuted(rec.ReceivedAt.Format(timeLayout)))
	}
	act := rec.Activity
	if act == nil {
		return
	}
	fmt.Fprintf(w, "Published: %s\n", time.Unix(act.Published, 0).UTC().Format(timeLayout))
	fmt.Fprintf(w, "Generator: %s\n", act.Generator.ID)
	fmt.Fprintf(w, "Actor:     %s (%s)\n", act.Actor.Name, act.Actor.ID)
	fmt.Fprintf(w, "Target:    %s (%s, %s)\n", act.Target.Name, act.Target.ID, act.Target.Type)
	fmt.Fprintf(w, "Object:    %s\n", act.Object.ID)
	if act.Object.Content != "" {
		fmt.Fprintf(w, "Content:   %s\n", act.Object.Content)
	}
}

func printRecordTable(w io.Writer, recs []*model.ActivityRecord, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tACTOR\tTARGET\tCONTENT")
	for _, rec := range recs {
		var actor, target, content string
		if act := rec.Activity; act != nil {
			actor = act.Actor.Name
			target = act.Target.Name
			content = truncate(act.Object.Content, 50)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.ReceivedAt.Format(timeLayout),
			actor,
			target,
			content,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d activities (%d total)\n", len(recs), total)
}

func printRejectionTable(w io.Writer, rejs []*model.Rejection) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTAGE\tREASON")
	for _, r := range rejs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Format(timeLayout),
			r.Stage,
			truncate(r.Reason, 60),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d rejections\n", len(rejs))
}
