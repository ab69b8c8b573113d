package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gitterbridge/internal/client"
	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/parser"
	"github.com/alfredjeanlab/gitterbridge/internal/schema"
)

// errAbsent is returned when an event yields no result. main turns it into
// exit status 1.
var errAbsent = errors.New("no result for event")

var (
	localServiceID string
	localLogLevel  string
	useRemote      bool
)

// localPreRun builds a server client only when --remote is set.
func localPreRun(cmd *cobra.Command, args []string) error {
	if !useRemote {
		return nil
	}
	return rootCmd.PersistentPreRunE(cmd, args)
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Convert a Gitter event into an activity",
	Long: `Reads a Gitter event as JSON from file (or stdin when omitted or "-")
and prints the Create activity it normalizes to. Exits 1 when the event
produces no activity.`,
	GroupID:           "local",
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: localPreRun,
	RunE: func(cmd *cobra.Command, args []string) error {
		event, err := readEvent(eventPath(args), cmd.InOrStdin())
		if err != nil {
			return err
		}

		var act *model.Activity
		if useRemote {
			act, err = gbClient.Parse(context.Background(), event)
			if client.IsAbsent(err) {
				return errAbsent
			}
			if err != nil {
				return err
			}
		} else {
			p, err := newLocalParser()
			if err != nil {
				return err
			}
			var ok bool
			if act, ok = p.Parse(context.Background(), event); !ok {
				return errAbsent
			}
		}
		return printJSON(cmd.OutOrStdout(), act)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check an event against a schema category",
	Long: `Reads an event as JSON from file (or stdin) and prints it with null
members removed when it passes the schema for --category. Exits 1 when the
event is rejected.`,
	GroupID:           "local",
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: localPreRun,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")

		event, err := readEvent(eventPath(args), cmd.InOrStdin())
		if err != nil {
			return err
		}

		var out map[string]any
		if useRemote {
			out, err = gbClient.Validate(context.Background(), event, category)
			if client.IsAbsent(err) {
				return errAbsent
			}
			if err != nil {
				return err
			}
		} else {
			p, err := newLocalParser()
			if err != nil {
				return err
			}
			cat := schema.Category(category)
			if !slices.Contains(p.Categories(), cat) {
				return fmt.Errorf("unknown category %q", category)
			}
			var ok bool
			if out, ok = p.ValidateAs(context.Background(), event, cat); !ok {
				return errAbsent
			}
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	for _, c := range []*cobra.Command{parseCmd, validateCmd} {
		c.Flags().StringVar(&localServiceID, "service-id", envOr("GITTER_SERVICE_ID", "gb"), "generator id stamped on activities")
		c.Flags().StringVar(&localLogLevel, "log-level", envOr("GITTER_LOG_LEVEL", "warn"), "log level for diagnostics on stderr")
		c.Flags().BoolVar(&useRemote, "remote", false, "run on the server instead of in-process")
	}
	validateCmd.Flags().String("category", string(schema.CategoryActivity), "schema category (activity or message)")
}

func newLocalParser() (*parser.Parser, error) {
	logger := parser.NewLogger(os.Stderr, localLogLevel)
	return parser.New(localServiceID, localLogLevel, parser.WithLogger(logger))
}

func eventPath(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	return args[0]
}

// readEvent decodes a single JSON object from path, or from stdin when path
// is "-".
func readEvent(path string, stdin io.Reader) (map[string]any, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}
	return decodeEvent(data)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func decodeEvent(data []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid event JSON: %w", err)
	}
	event, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("event must be a JSON object")
	}
	return event, nil
}
