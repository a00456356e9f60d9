package models

import "strings"

type EndpointKind string

const (
	EndpointListingSearch EndpointKind = "listing-search"
	EndpointDetailFetch   EndpointKind = "detail-fetch"
)

const (
	ListingSearchPath = "api/v4/search/search_items"
	DetailFetchPath   = "api/v4/pdp/get_pc"
)

// CapturedPayload is a raw response body observed on the page's network stream.
type CapturedPayload struct {
	Kind   EndpointKind
	URL    string
	Body   []byte
	Target string
}

// ClassifyEndpoint maps a response URL to the endpoint it belongs to.
func ClassifyEndpoint(url string) (EndpointKind, bool) {
	switch {
	case strings.Contains(url, DetailFetchPath):
		return EndpointDetailFetch, true
	case strings.Contains(url, ListingSearchPath):
		return EndpointListingSearch, true
	default:
		return "", false
	}
}
