// Package github lists the repositories of an organization or user and
// manages the temporary shallow clones the scanner works on.
//
// Access tokens are opaque strings. They are handed to the HTTP client and
// the cloner and are never logged, persisted or included in errors.
package github

import (
	"fmt"
	"strings"
)

// OwnerKind selects the listing endpoint.
type OwnerKind string

const (
	OwnerOrg  OwnerKind = "org"
	OwnerUser OwnerKind = "user"
)

// Owner is an organization or user whose repositories are scanned.
type Owner struct {
	Kind OwnerKind
	Name string
}

func (o Owner) String() string { return string(o.Kind) + ":" + o.Name }

// ParseOwner accepts "org:name", "user:name" or a bare name, which is
// treated as an organization.
func ParseOwner(s string) (Owner, error) {
	kind, name, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		kind, name = string(OwnerOrg), kind
	}
	if name == "" || strings.Contains(name, "/") {
		return Owner{}, fmt.Errorf("invalid owner %q", s)
	}
	switch OwnerKind(kind) {
	case OwnerOrg, OwnerUser:
		return Owner{Kind: OwnerKind(kind), Name: name}, nil
	}
	return Owner{}, fmt.Errorf("invalid owner kind %q in %q", kind, s)
}

// Repo is the subset of repository metadata the scanner needs.
type Repo struct {
	ID            int64  `json:"id"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	CloneURL      string `json:"clone_url"`
	HTMLURL       string `json:"html_url,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	Private       bool   `json:"private,omitempty"`
	Fork          bool   `json:"fork,omitempty"`
	Archived      bool   `json:"archived,omitempty"`
	Disabled      bool   `json:"disabled,omitempty"`
	// Size is reported by GitHub in KiB.
	Size int `json:"size,omitempty"`
}

// Key is the full name, falling back to owner/name.
func (r Repo) Key() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Owner + "/" + r.Name
}
