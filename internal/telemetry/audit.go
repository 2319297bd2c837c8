package telemetry

import (
	"context"
	"log"
	"time"
)

// Publisher is the broker-facing half of the audit trail.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEnvelope is the wire form of one audit entry.
type AuditEnvelope struct {
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Environment   string  `json:"environment"`
	RequestID     string  `json:"request_id"`
	UserID        *string `json:"user_id,omitempty"`
	Severity      string  `json:"severity"`
	Detail        string  `json:"detail"`
}

// AuditEmitter stamps audit entries with service identity and publishes
// them on the bus.
type AuditEmitter struct {
	pub     Publisher
	key     string
	service string
	env     string
}

func NewAuditEmitter(pub Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{pub: pub, key: routingKey, service: service, env: environment}
}

// Emit publishes one entry. A nil emitter or publisher is a no-op, and a
// publish failure is logged rather than returned.
func (e *AuditEmitter) Emit(ctx context.Context, severity, detail, requestID string, userID *string) {
	if e == nil || e.pub == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.env,
		RequestID:     requestID,
		UserID:        userID,
		Severity:      severity,
		Detail:        detail,
	}
	if err := e.pub.Publish(ctx, e.key, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
