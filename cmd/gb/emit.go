package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gitterbridge/internal/events"
)

// emitCmd publishes a raw Gitter event onto the bus the relay subscribes to.
var emitCmd = &cobra.Command{
	Use:   "emit [file]",
	Short: "Publish a raw Gitter event to NATS",
	Long: `Reads a Gitter event as JSON from file (or stdin) and publishes it
unchanged on the relay's inbound subject. The event is checked to be a JSON
object but is not normalized locally.`,
	GroupID:           "system",
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		subject, _ := cmd.Flags().GetString("subject")

		data, err := readInput(eventPath(args), cmd.InOrStdin())
		if err != nil {
			return err
		}
		if _, err := decodeEvent(data); err != nil {
			return err
		}

		pub, err := events.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		defer pub.Close()

		if err := pub.PublishRaw(context.Background(), subject, data); err != nil {
			return fmt.Errorf("publishing to %s: %w", subject, err)
		}
		if err := pub.Flush(); err != nil {
			return fmt.Errorf("flushing NATS: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "published %d bytes to %s\n", len(data), subject)
		return nil
	},
}

func init() {
	emitCmd.Flags().String("nats-url", envOr("GITTER_NATS_URL", "nats://localhost:4222"), "NATS server URL")
	emitCmd.Flags().String("subject", envOr("GITTER_SUBJECT", events.TopicMessageReceived), "subject to publish on")
}
