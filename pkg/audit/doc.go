// Package audit records the portal's permission decisions and data
// mutations for compliance review.
//
// # Overview
//
// Every API-surface access decision (allowed and denied), every member,
// product and parameter mutation, and every export run can be captured
// as an Event and written to one or more sinks.
//
// # Sinks
//
// FileLogger writes JSON lines with size-based rotation. DBLogger writes
// to the audit_events postgres table and supports Search and Stats.
// MultiLogger fans out to several sinks. When no logger is configured,
// FromContext returns a no-op so call sites never nil-check.
//
// # Usage
//
// Handlers and guards fetch the logger from the request context:
//
//	audit.RecordDecision(ctx, r, user, resource, action, region, decision)
//
// Stores and workers hold a Logger directly:
//
//	logger.Log(ctx, audit.NewExportEvent(audit.EventTypeExportComplete,
//		userID, "members", region, "export finished", nil))
//
// # Related Packages
//
//   - pkg/authz: produces the decisions recorded here
//   - pkg/middleware: injects the logger and records HTTP-level events
package audit
