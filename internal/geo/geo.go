// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package geo recognizes GEO accession numbers.
package geo

import (
	"regexp"
	"strings"
)

var accessionPattern = regexp.MustCompile(`^(GSE|GSM|GPL|GDS)(\d+)$`)

// Kind is the GEO record family an accession belongs to.
type Kind string

const (
	Series   Kind = "GSE"
	Sample   Kind = "GSM"
	Platform Kind = "GPL"
	Dataset  Kind = "GDS"
)

// Parse normalizes an accession and reports its kind. ok is false when
// the string is not a GEO accession.
func Parse(s string) (accession string, kind Kind, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := accessionPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return s, Kind(m[1]), true
}

// IsSeries reports whether s is a GSE series accession.
func IsSeries(s string) bool {
	_, kind, ok := Parse(s)
	return ok && kind == Series
}
