// Package audit emits the ledger's audit trail. The core only produces
// events after successful mutations; persistence and querying of the trail
// belong to an external collaborator consuming the log stream.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"openbalance.org/internal/obs"
	"openbalance.org/internal/stream"
)

// Actor identifies who performed a mutation. Privileged marks actors allowed
// to unpost journal entries.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Privileged bool   `json:"privileged,omitempty"`
}

type ctxKey string

const (
	actorKey     ctxKey = "audit_actor"
	requestIDKey ctxKey = "audit_request_id"
)

// ContextWithActor attaches the acting user to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the acting user, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

// WithRequestID attaches the request identifier to the context for audit
// correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Trail is the seam services call after every successful mutation.
type Trail interface {
	LogAuditTrail(ctx context.Context, table, recordID, action string, oldValues, newValues map[string]any) error
}

// Log writes audit events as JSON lines on the shared logger and fans them
// out to stream subscribers.
type Log struct {
	Events *stream.Stream
}

// NewLog creates a Log. events may be nil when no live subscribers exist.
func NewLog(events *stream.Stream) *Log {
	return &Log{Events: events}
}

var _ Trail = (*Log)(nil)

// LogAuditTrail records one mutation: table, record, action (INSERT, UPDATE,
// DELETE, POST, UNPOST) and the changed values, enriched with actor and
// request context.
func (l *Log) LogAuditTrail(ctx context.Context, table, recordID, action string, oldValues, newValues map[string]any) error {
	table = strings.TrimSpace(table)
	action = strings.TrimSpace(action)
	if table == "" || action == "" {
		return errors.New("audit: table and action are required")
	}

	entry := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"type":      "audit",
		"table":     table,
		"record_id": recordID,
		"action":    action,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if actor, ok := ActorFromContext(ctx); ok {
		entry["actor_id"] = actor.ID
		entry["actor_name"] = actor.Name
	}
	if len(oldValues) > 0 {
		entry["old_values"] = oldValues
	}
	if len(newValues) > 0 {
		entry["new_values"] = newValues
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))

	if l.Events != nil {
		l.Events.Publish(stream.MutationEvent{
			Table:     table,
			RecordID:  recordID,
			Action:    action,
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

// Discard is a Trail that drops everything; test helper.
type Discard struct{}

func (Discard) LogAuditTrail(context.Context, string, string, string, map[string]any, map[string]any) error {
	return nil
}
