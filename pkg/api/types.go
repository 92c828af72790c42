package api

import (
	"github.com/hdcn/ledenportaal/pkg/exports"
	"github.com/hdcn/ledenportaal/pkg/members"
	"github.com/hdcn/ledenportaal/pkg/products"
)

// CheckRequest asks whether the session user may perform an action,
// optionally narrowed to a region.
type CheckRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Region   string `json:"region,omitempty"`
}

// ValidateRequest evaluates a conjunction of "resource_action" keys in
// a single region. All keys must pass for the request to be valid.
type ValidateRequest struct {
	Keys   []string `json:"keys"`
	Region string   `json:"region,omitempty"`
}

// ValidateResponse reports the conjunction result.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// CapabilityRequest asks which of the given "resource_action" keys the
// user holds in at least one region. The frontend uses this to decide
// which menu entries to render.
type CapabilityRequest struct {
	Keys []string `json:"keys"`
}

// CapabilityResponse maps each requested key to whether the capability
// exists somewhere. Malformed keys map to false.
type CapabilityResponse struct {
	Capabilities map[string]bool `json:"capabilities"`
}

// RegionsResponse lists the regions the user's grants reach. When the
// user holds a wildcard grant, Regions carries the configured region
// list and AllRegions is true.
type RegionsResponse struct {
	Regions    []string `json:"regions"`
	AllRegions bool     `json:"all_regions"`
}

// MeResponse describes the session user.
type MeResponse struct {
	ID         string   `json:"id"`
	Email      string   `json:"email,omitempty"`
	Groups     []string `json:"groups"`
	Regions    []string `json:"regions"`
	AllRegions bool     `json:"all_regions"`
}

// ListMembersResponse is a page of the member register.
type ListMembersResponse struct {
	Members []*members.Member `json:"members"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// ListProductsResponse is the shop catalogue listing.
type ListProductsResponse struct {
	Products []*products.Product `json:"products"`
}

// CreateExportRequest starts an extract run for one region, or for
// region "all" when the user's grants allow a national file.
type CreateExportRequest struct {
	Kind   string `json:"kind"`
	Region string `json:"region"`
}

// ListExportsResponse lists recent extract runs, newest first.
type ListExportsResponse struct {
	Exports []*exports.Export `json:"exports"`
}
