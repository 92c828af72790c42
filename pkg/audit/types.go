package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Session events
	EventTypeSessionResolve  EventType = "session.resolve"
	EventTypeSessionRejected EventType = "session.rejected"

	// Authorization events
	EventTypeAuthzPermissionCheck EventType = "authz.permission_check"
	EventTypeAuthzAccessDenied    EventType = "authz.access_denied"

	// Data mutation events
	EventTypeDataMemberCreate    EventType = "data.member_create"
	EventTypeDataMemberUpdate    EventType = "data.member_update"
	EventTypeDataMemberDelete    EventType = "data.member_delete"
	EventTypeDataProductCreate   EventType = "data.product_create"
	EventTypeDataProductUpdate   EventType = "data.product_update"
	EventTypeDataProductDelete   EventType = "data.product_delete"
	EventTypeDataParameterCreate EventType = "data.parameter_create"
	EventTypeDataParameterUpdate EventType = "data.parameter_update"
	EventTypeDataParameterDelete EventType = "data.parameter_delete"

	// Export events
	EventTypeExportStart    EventType = "export.start"
	EventTypeExportComplete EventType = "export.complete"
	EventTypeExportFailed   EventType = "export.failed"

	// Configuration events
	EventTypeConfigRoleTableLoad   EventType = "config.role_table_load"
	EventTypeConfigRoleTableReload EventType = "config.role_table_reload"

	// HTTP request events (middleware)
	EventTypeHTTPRequest EventType = "http.request"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry. IDs are UUIDs assigned at
// build time so the same event correlates across sinks.
type Event struct {
	// Core fields
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID string   `json:"user_id,omitempty"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`

	// Decision information
	Resource     string   `json:"resource,omitempty"`
	Action       string   `json:"action,omitempty"`
	Region       string   `json:"region,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	MatchedRoles []string `json:"matched_roles,omitempty"`

	// Resource identity for mutations (member number, product ID, ...)
	ResourceID string `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Changes tracking (before/after for updates)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit events. Results
// are always ordered newest first.
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	UserID string

	// Event filters
	EventTypes []EventType
	Status     *EventStatus

	// Decision filters
	Resource string
	Region   string

	// Request context filters
	RequestID string

	// Pagination
	Limit  int
	Offset int
}

// Stats represents aggregate counts over stored audit events
type Stats struct {
	TotalEvents    int64                 `json:"total_events"`
	EventsByType   map[EventType]int64   `json:"events_by_type"`
	EventsByStatus map[EventStatus]int64 `json:"events_by_status"`
	AccessDenials  int64                 `json:"access_denials"`
	UniqueUsers    int64                 `json:"unique_users"`
	TimeRange      *TimeRange            `json:"time_range,omitempty"`
}

// TimeRange represents a time range for statistics
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
