package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
)

const SubjectPrefix = "fusion.deploy."

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Event is the message published for every run.
type Event struct {
	Type    string                `json:"type"`
	Message string                `json:"message"`
	Summary *orchestrator.Summary `json:"summary"`
}

// NATS publishes run events on fusion.deploy.<org>.
type NATS struct {
	conn  Publisher
	close func()
}

// DialNATS connects to the server at url.
func DialNATS(url string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("fusion-deploy"),
		nats.Timeout(5*time.Second),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &NATS{conn: nc, close: nc.Close}, nil
}

func NewNATS(conn Publisher) *NATS {
	return &NATS{conn: conn}
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Notify(ctx context.Context, sum *orchestrator.Summary) error {
	ev := Event{
		Type:    "run." + string(sum.Outcome),
		Message: describe(sum),
		Summary: sum,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subject := Subject(sum.OrgID)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	// nats refuses to flush without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

func (n *NATS) Close() {
	if n.close != nil {
		n.close()
	}
}

// Subject is where events for org are published.
func Subject(org string) string {
	if org == "" {
		org = "unknown"
	}
	return SubjectPrefix + org
}
