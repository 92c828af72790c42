package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/contextkeys"
)

// Logger is the interface every audit sink implements. Convenience
// builders below assemble the events so sinks only have to write them.
type Logger interface {
	// Log writes an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the sink and flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context. Returns a no-op
// logger when none is set so call sites never nil-check.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// noOpLogger discards all events (used when no logger is configured)
type noOpLogger struct{}

func (l *noOpLogger) Log(ctx context.Context, event *Event) error { return nil }

func (l *noOpLogger) Close() error { return nil }

// newBaseEvent creates an event with the shared fields populated: ID,
// timestamp, request context from ctx, and the actor when r carries one.
func newBaseEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}

	if user := contextkeys.GetUser(ctx); user != nil {
		event.UserID = user.ID
		event.Email = user.Email
		event.Roles = user.Groups
	}

	if r != nil {
		event.IPAddress = clientIP(r)
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
	}

	return event
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// NewDecisionEvent builds the audit record for a permission decision.
// Allowed decisions become authz.permission_check/success, denials
// become authz.access_denied/denied.
func NewDecisionEvent(ctx context.Context, r *http.Request, user *authz.User, resource authz.Resource, action authz.Action, region authz.Region, decision authz.Decision) *Event {
	eventType := EventTypeAuthzPermissionCheck
	status := EventStatusSuccess
	if !decision.Allowed {
		eventType = EventTypeAuthzAccessDenied
		status = EventStatusDenied
	}

	event := newBaseEvent(ctx, r, eventType, status)
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
		event.Roles = user.Groups
	}
	event.Resource = string(resource)
	event.Action = string(action)
	event.Region = string(region)
	event.Reason = decision.Reason
	event.MatchedRoles = decision.MatchedRoles

	return event
}

// NewMutationEvent builds the audit record for a data mutation.
func NewMutationEvent(ctx context.Context, r *http.Request, eventType EventType, resource authz.Resource, resourceID string, changes *ChangeDetails, message string) *Event {
	event := newBaseEvent(ctx, r, eventType, EventStatusSuccess)
	event.Resource = string(resource)
	event.ResourceID = resourceID
	event.Changes = changes
	event.Message = message

	return event
}

// NewExportEvent builds the audit record for an export run. Workers have
// no request, so the actor is passed explicitly.
func NewExportEvent(eventType EventType, userID, kind, region, message string, err error) *Event {
	status := EventStatusSuccess
	if err != nil {
		status = EventStatusFailure
	}

	event := &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		UserID:    userID,
		Resource:  string(authz.ResourceExports),
		Region:    region,
		Message:   message,
		Metadata:  map[string]interface{}{"kind": kind},
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}

	return event
}

// NewConfigEvent builds the audit record for a configuration change, such
// as loading or reloading the role table. Config events originate from
// process startup or a watcher, never from a request.
func NewConfigEvent(eventType EventType, message string, err error) *Event {
	status := EventStatusSuccess
	if err != nil {
		status = EventStatusFailure
	}

	event := &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Resource:  string(authz.ResourcePermissions),
		Message:   message,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}

	return event
}

// RecordDecision logs a permission decision through the context logger.
// Sink failures are swallowed: auditing never breaks request handling.
func RecordDecision(ctx context.Context, r *http.Request, user *authz.User, resource authz.Resource, action authz.Action, region authz.Region, decision authz.Decision) {
	_ = FromContext(ctx).Log(ctx, NewDecisionEvent(ctx, r, user, resource, action, region, decision))
}

// RecordMutation logs a data mutation through the context logger.
func RecordMutation(ctx context.Context, r *http.Request, eventType EventType, resource authz.Resource, resourceID string, changes *ChangeDetails, message string) {
	_ = FromContext(ctx).Log(ctx, NewMutationEvent(ctx, r, eventType, resource, resourceID, changes, message))
}

// RecordFailure logs a failed operation through the context logger.
func RecordFailure(ctx context.Context, r *http.Request, eventType EventType, message string, err error) {
	event := newBaseEvent(ctx, r, eventType, EventStatusFailure)
	event.Message = message
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	_ = FromContext(ctx).Log(ctx, event)
}
