package exports

import (
	"errors"
	"time"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

// Kind selects which columns an extract carries.
type Kind string

const (
	// KindAddressList is the postal extract the regional committees use
	// for mailings. Only active members are included.
	KindAddressList Kind = "address-list"

	// KindFullDump carries every column of the member record and is
	// used for the yearly archive run.
	KindFullDump Kind = "full-dump"
)

// Valid reports whether k names a known extract kind.
func (k Kind) Valid() bool {
	return k == KindAddressList || k == KindFullDump
}

// Status tracks an export run through its lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrPermissionDenied is returned when the requesting user may not
	// export the requested region.
	ErrPermissionDenied = errors.New("permission denied for export")

	// ErrUnknownKind is returned for a Kind this package does not know.
	ErrUnknownKind = errors.New("unknown export kind")

	// ErrNotFound is returned when no run with the given ID is known.
	ErrNotFound = errors.New("export not found")

	// ErrNotReady is returned when a run's file is requested before the
	// run has completed.
	ErrNotReady = errors.New("export not completed")
)

// Export is the record of a single run. The Runner keeps these in
// memory for status lookups; the durable artifacts are the file on the
// sink and the audit events.
type Export struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Region      authz.Region `json:"region"`
	Status      Status       `json:"status"`
	FileName    string       `json:"file_name"`
	Location    string       `json:"location,omitempty"`
	RowCount    int          `json:"row_count"`
	SizeBytes   int64        `json:"size_bytes"`
	RequestedBy string       `json:"requested_by,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Request describes a single export run. User is the actor the
// permission check and the audit trail are attributed to.
type Request struct {
	Kind   Kind         `json:"kind"`
	Region authz.Region `json:"region"`
	User   *authz.User  `json:"-"`
}
