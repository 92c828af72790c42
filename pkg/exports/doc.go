// Package exports generates CSV extracts of the member administration
// and delivers them to a configured sink.
//
// Two extract kinds exist. The address list carries the postal fields
// the regional committees need for mailings and only includes active
// members. The full dump carries every column of the member record and
// is meant for the yearly archive run.
//
// A Runner produces one file per kind and region. Every run is gated by
// the access evaluator (the export action on the members resource for
// the requested region) and bracketed with audit events, so the trail
// shows who pulled which region's data and whether the run finished.
// RunAll fans out over all regions a user may export, bounded by the
// worker limit.
//
// Files land on a Sink: S3Sink writes to the object store under a
// configurable prefix, FileSink writes to a local directory for
// development setups. Run metadata is held in memory only; the durable
// record of a run is the file itself plus the audit events.
package exports
