// Package parameters stores the portal's configuration parameters,
// grouped by category: the canonical region list, the recognized
// membership kinds, and export settings. The frontend populates its
// dropdowns from these values, so changes here reach every screen
// without a deploy.
//
// Parameters are keyed by (category, name). EnsureDefaults seeds the
// well-known categories on an empty database and is safe to run on
// every start.
package parameters
