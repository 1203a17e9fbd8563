package listener

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/sensorforge/multicorder/internal/recorder"
)

// NATS serves recorder trigger events from a message bus. Requests on
// <subject>.setup, .start, .stop and .status map 1:1 onto recorder calls and
// are acknowledged with the same JSON payloads as the HTTP listener. The
// setup payload, if any, is the session name.
type NATS struct {
	url     string
	subject string

	mu  sync.Mutex
	rec *recorder.Recorder
}

// NewNATS creates a NATS listener for the given server URL and subject
// prefix.
func NewNATS(url, subject string) *NATS {
	return &NATS{url: url, subject: subject}
}

// Bind associates exactly one recorder with this listener.
func (n *NATS) Bind(rec *recorder.Recorder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rec != nil {
		return ErrAlreadyBound
	}
	n.rec = rec
	return nil
}

func (n *NATS) recorder() *recorder.Recorder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rec
}

// Serve subscribes to the trigger subjects until the context is cancelled.
func (n *NATS) Serve(ctx context.Context) error {
	if n.recorder() == nil {
		return ErrNotBound
	}

	nc, err := nats.Connect(n.url, nats.Name("multicorder"))
	if err != nil {
		return err
	}
	defer nc.Drain()

	handlers := map[string]func(*nats.Msg){
		"setup": func(msg *nats.Msg) {
			name := strings.TrimSpace(string(msg.Data))
			resp := doSetup(n.recorder(), name)
			observe("setup", resp)
			n.respond(msg, resp)
		},
		"start": func(msg *nats.Msg) {
			resp := doStart(n.recorder())
			observe("start", resp)
			n.respond(msg, resp)
		},
		"stop": func(msg *nats.Msg) {
			resp := doStop(n.recorder())
			observe("stop", resp)
			n.respond(msg, resp)
		},
		"status": func(msg *nats.Msg) {
			n.respond(msg, statusOf(n.recorder()))
		},
	}

	var subs []*nats.Subscription
	for op, handler := range handlers {
		sub, err := nc.Subscribe(n.subject+"."+op, handler)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	slog.Info("NATS trigger listener ready", "url", n.url, "subject", n.subject)
	<-ctx.Done()
	return nil
}

func (n *NATS) respond(msg *nats.Msg, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("Failed to encode trigger reply", "error", err)
		return
	}
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error("Failed to send trigger reply", "error", err)
	}
}
