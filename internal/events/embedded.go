package events

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS server for single-binary deployments.
type EmbeddedServer struct {
	srv *natsserver.Server
}

// StartEmbedded starts a NATS server on host:port (port -1 picks a free one)
// and waits until it accepts connections.
func StartEmbedded(host string, port int) (*EmbeddedServer, error) {
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedded NATS: %w", err)
	}
	srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded NATS not ready on %s:%d", host, port)
	}
	return &EmbeddedServer{srv: srv}, nil
}

// ClientURL returns the nats:// URL clients should dial.
func (e *EmbeddedServer) ClientURL() string {
	return e.srv.ClientURL()
}

func (e *EmbeddedServer) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
