// Package api implements the portal's HTTP interface.
//
// # Overview
//
// The server exposes a JSON API under /api/v1 plus unauthenticated
// health and metrics endpoints at the root. Every /api/v1 request
// passes through session resolution and rate limiting before it
// reaches a handler; handlers that touch member, product, parameter or
// export data are additionally wrapped in permission guards backed by
// the access evaluator.
//
// # Layout
//
// Handlers are grouped per concern, each with its own constructor and
// a RegisterRoutes method:
//
//   - AuthzHandlers: permission checks, region resolution, role table
//   - MemberHandlers: the member register, region-scoped
//   - ProductHandlers: the club shop catalogue
//   - ParameterHandlers: configuration entries (regions, kinds, export)
//   - ExportHandlers: CSV extract runs
//
// NewServer assembles the groups onto a single router:
//
//	srv := api.NewServer(api.Config{
//	    Evaluator: evaluator,
//	    Sessions:  sessions,
//	    Members:   memberStore,
//	    ...
//	})
//	http.ListenAndServe(addr, srv.Router())
//
// # Authorization model
//
// Route guards reject requests whose user lacks the capability for the
// route at all. Handlers that operate on a single record re-check the
// record's own region after fetching it, because the region is not
// known at routing time. List handlers narrow their query to the
// user's accessible regions instead of rejecting. Denied checks are
// written to the audit trail; allowed ones only when the client asks
// for an explicit decision via /authz/check.
package api
