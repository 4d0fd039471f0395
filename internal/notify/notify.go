// Package notify emits fire-and-forget completion events.
//
// When a project finishes its final stage the engine informs a notifier;
// delivery failures never affect workflow state. The NATS notifier publishes
// a JSON [CompletionEvent] for dashboards and other interested parties; the
// printer notifier simply reports completion on the terminal.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"agentflow/internal/engine"
	"agentflow/internal/output"
)

// DefaultSubject is the NATS subject completion events are published on.
const DefaultSubject = "agentflow.project.completed"

// CompletionEvent is the payload published when a project completes.
type CompletionEvent struct {
	ProjectID    string               `json:"project_id"`
	Stage        int                  `json:"stage"`
	Deliverables []engine.Deliverable `json:"deliverables"`
	CompletedAt  time.Time            `json:"completed_at"`
}

// NATSNotifier publishes completion events to a NATS subject. It implements
// [engine.Notifier].
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier connects to the given NATS URL and publishes on subject
// (or [DefaultSubject] when empty).
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("agentflow"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

// ProjectCompleted publishes a [CompletionEvent]. A nil notifier or a lost
// connection degrades gracefully: the event is dropped, not retried.
func (n *NATSNotifier) ProjectCompleted(projectID string, stage int, deliverables []engine.Deliverable) error {
	if n == nil || n.conn == nil {
		return nil
	}

	event := CompletionEvent{
		ProjectID:    projectID,
		Stage:        stage,
		Deliverables: deliverables,
		CompletedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode completion event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}
	return n.conn.Flush()
}

// Close drains the underlying connection.
func (n *NATSNotifier) Close() {
	if n != nil && n.conn != nil {
		n.conn.Close()
	}
}

// PrintNotifier reports completions on the terminal. It implements
// [engine.Notifier] for runs without a NATS endpoint configured.
type PrintNotifier struct {
	printer *output.Printer
}

// NewPrintNotifier creates a [PrintNotifier] writing through the given
// printer.
func NewPrintNotifier(printer *output.Printer) *PrintNotifier {
	return &PrintNotifier{printer: printer}
}

// ProjectCompleted prints a completion banner. Never fails.
func (p *PrintNotifier) ProjectCompleted(projectID string, stage int, deliverables []engine.Deliverable) error {
	p.printer.ProjectCompleted(projectID, stage, deliverables)
	return nil
}
