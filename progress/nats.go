package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject root for progress events.
const DefaultSubjectPrefix = "scholarforge.progress"

// Event is the JSON payload published per message.
type Event struct {
	RunID   string    `json:"run_id"`
	Seq     int64     `json:"seq"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Publisher is the subset of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes every message as an Event on <prefix>.<run_id>.
// nats.Conn.Publish only buffers, so Report does not wait on the network.
type NATS struct {
	pub     Publisher
	subject string
	runID   string
	seq     atomic.Int64
	logger  *slog.Logger
}

// NewNATS creates a publisher sink for one run.
func NewNATS(pub Publisher, prefix, runID string, logger *slog.Logger) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{
		pub:     pub,
		subject: Subject(prefix, runID),
		runID:   runID,
		logger:  logger,
	}
}

// Subject returns the subject events for runID are published on.
func Subject(prefix, runID string) string {
	return fmt.Sprintf("%s.%s", prefix, runID)
}

// Report implements Sink.
func (n *NATS) Report(msg string) {
	data, err := json.Marshal(Event{
		RunID:   n.runID,
		Seq:     n.seq.Add(1),
		Message: msg,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		n.logger.Warn("Marshal progress event failed", "error", err)
		return
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		n.logger.Warn("Publish progress event failed", "subject", n.subject, "error", err)
	}
}

// Connect opens a NATS connection for progress publishing.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("scholarforge"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
