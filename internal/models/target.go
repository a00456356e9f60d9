package models

import "strings"

// Target is one scrape job: a listing URL or a free-text query.
type Target struct {
	Raw string
}

func NewTarget(raw string) Target {
	return Target{Raw: strings.TrimSpace(raw)}
}

// IsURL reports whether the target points directly at a marketplace page.
func (t Target) IsURL() bool {
	return strings.HasPrefix(t.Raw, BaseURL)
}

type Credential struct {
	Identity string
	Secret   string
}
