// Package audit records person search activity for SIEM consumption.
// Events are logged as structured JSON on a dedicated logger namespace.
// Identity values never reach the log unmasked.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trs-platform/person-search/pkg/logging"
)

// SearchEventType categorizes audited events for filtering and alerting.
type SearchEventType string

const (
	// EventLookup is logged for every query against the search index.
	EventLookup SearchEventType = "search_lookup"
	// EventScopeRetired is logged when a source record's index rows are removed.
	EventScopeRetired SearchEventType = "search_scope_retired"
)

// SearchEvent is the JSON document emitted for each audited event.
type SearchEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType SearchEventType `json:"event_type"`
	Actor     string          `json:"actor,omitempty"`
	Details   any             `json:"details"`
	Severity  string          `json:"severity"`
}

// LookupDetails describes one index lookup.
type LookupDetails struct {
	AttributeType string `json:"attribute_type"`
	MaskedValue   string `json:"masked_value"`
	MatchCount    int    `json:"match_count"`
}

// ScopeRetiredDetails describes the removal of one scope's rows.
type ScopeRetiredDetails struct {
	PersonID    uuid.UUID `json:"person_id"`
	ScopeKey    string    `json:"scope_key"`
	RowsRemoved int64     `json:"rows_removed"`
}

type actorKey struct{}

// WithActor returns a context carrying the identity of whoever is acting.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "".
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// SearchAuditor logs search events.
type SearchAuditor struct {
	logger *zap.Logger
}

// NewSearchAuditor creates an auditor logging under the "search_audit" namespace.
func NewSearchAuditor(logger *zap.Logger) *SearchAuditor {
	return &SearchAuditor{logger: logger.Named("search_audit")}
}

// LogLookup records a lookup. The searched value is masked before logging.
func (a *SearchAuditor) LogLookup(ctx context.Context, attrType, value string, matchCount int) {
	details := LookupDetails{
		AttributeType: attrType,
		MaskedValue:   logging.MaskValue(value),
		MatchCount:    matchCount,
	}
	event := a.event(ctx, EventLookup, details, "info")

	a.logger.Info("Person search lookup",
		zap.String("event_json", event),
		zap.String("attribute_type", attrType),
		zap.String("masked_value", details.MaskedValue),
		zap.Int("match_count", matchCount),
		zap.String("actor", ActorFromContext(ctx)),
	)
}

// LogScopeRetired records the removal of a scope's index rows.
func (a *SearchAuditor) LogScopeRetired(ctx context.Context, personID uuid.UUID, scopeKey string, rowsRemoved int64) {
	details := ScopeRetiredDetails{
		PersonID:    personID,
		ScopeKey:    scopeKey,
		RowsRemoved: rowsRemoved,
	}
	event := a.event(ctx, EventScopeRetired, details, "info")

	a.logger.Info("Search scope retired",
		zap.String("event_json", event),
		zap.String("person_id", personID.String()),
		zap.String("scope_key", scopeKey),
		zap.Int64("rows_removed", rowsRemoved),
		zap.String("actor", ActorFromContext(ctx)),
	)
}

func (a *SearchAuditor) event(ctx context.Context, eventType SearchEventType, details any, severity string) string {
	event := SearchEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Actor:     ActorFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
	// marshaling these fixed types cannot fail
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
