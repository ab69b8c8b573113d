package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/relay"
	"github.com/alfredjeanlab/gitterbridge/internal/ui"
)

const messageEvent = `{
	"type": "message",
	"data": {
		"id": "m1",
		"text": "hi",
		"sent": "2020-01-01T00:00:00.000Z",
		"fromUser": {"id": "u1", "username": "bob"}
	},
	"room": {"id": "r1", "name": "general"}
}`

func init() {
	ui.SetColor(false)
}

func runGB(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseCommand_Stdin(t *testing.T) {
	out, err := runGB(t, messageEvent, "parse", "--service-id", "svc-cli", "--log-level", "error")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var act model.Activity
	if err := json.Unmarshal([]byte(out), &act); err != nil {
		t.Fatalf("output is not an activity: %v\n%s", err, out)
	}
	if act.Generator.ID != "svc-cli" || act.Published != 1577836800 || act.Object.Content != "hi" {
		t.Errorf("activity = %+v", act)
	}
	if act.Target.Type != model.TypeGroup {
		t.Errorf("target type = %s", act.Target.Type)
	}
}

func TestParseCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(messageEvent), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runGB(t, "", "parse", path, "--log-level", "error")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(out, `"id": "m1"`) {
		t.Errorf("output = %s", out)
	}
}

func TestParseCommand_Absent(t *testing.T) {
	_, err := runGB(t, `{"data": null}`, "parse", "--log-level", "error")
	if !errors.Is(err, errAbsent) {
		t.Fatalf("err = %v, want errAbsent", err)
	}
}

func TestValidateCommand(t *testing.T) {
	event := strings.Replace(messageEvent, `"type": "message",`, `"type": "message", "extra": null,`, 1)
	out, err := runGB(t, event, "validate", "--category", "message", "--log-level", "error")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if strings.Contains(out, "extra") || !strings.Contains(out, `"fromUser"`) {
		t.Errorf("nulls not pruned: %s", out)
	}

	if _, err := runGB(t, `{"type":"message"}`, "validate", "--category", "bogus", "--log-level", "error"); err == nil || errors.Is(err, errAbsent) {
		t.Fatalf("expected unknown category error, got %v", err)
	}

	if _, err := runGB(t, `{"type":"message"}`, "validate", "--category", "activity", "--log-level", "error"); !errors.Is(err, errAbsent) {
		t.Fatalf("expected errAbsent, got %v", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	for _, tc := range []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"Object", `{"a":1}`, false},
		{"Empty", ``, true},
		{"Null", `null`, true},
		{"Array", `[1,2]`, true},
		{"Garbage", `{not json`, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeEvent([]byte(tc.in))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestReadInput_MissingFile(t *testing.T) {
	if _, err := readInput(filepath.Join(t.TempDir(), "nope.json"), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2024-05-01T09:30:00Z", now)
	if err != nil || !got.Equal(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("RFC3339: %v, %v", got, err)
	}
	got, err = parseSince("2h", now)
	if err != nil || !got.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("duration: %v, %v", got, err)
	}
	if _, err := parseSince("yesterday", now); err == nil {
		t.Error("expected error")
	}
	if _, err := parseSince("-1h", now); err == nil {
		t.Error("expected error for negative duration")
	}
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, &relay.Outcome{Accepted: true, Record: &model.ActivityRecord{ID: "act-1"}})
	if got := buf.String(); got != "accepted act-1\n" {
		t.Errorf("accepted = %q", got)
	}

	buf.Reset()
	printOutcome(&buf, &relay.Outcome{Rejection: &model.Rejection{ID: "rej-1", Stage: model.StageParse, Reason: "no data"}})
	if got := buf.String(); got != "rejected rej-1 (parse): no data\n" {
		t.Errorf("rejected = %q", got)
	}
}

func TestPrintRecordTable(t *testing.T) {
	var buf bytes.Buffer
	recs := []*model.ActivityRecord{{
		ID:         "act-1",
		ReceivedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Activity: &model.Activity{
			Actor:  model.Actor{Name: "bob"},
			Target: model.Target{Name: "general"},
			Object: model.Object{Content: strings.Repeat("x", 80)},
		},
	}}
	printRecordTable(&buf, recs, 3)
	out := buf.String()
	if !strings.Contains(out, "act-1") || !strings.Contains(out, "2024-05-01 09:30:00") {
		t.Errorf("table = %s", out)
	}
	if !strings.Contains(out, strings.Repeat("x", 47)+"...") {
		t.Errorf("content not truncated: %s", out)
	}
	if !strings.Contains(out, "1 activities (3 total)") {
		t.Errorf("footer missing: %s", out)
	}
}
