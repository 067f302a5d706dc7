// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identifier derives the canonical identifier of a publication:
// a stable "{type}:{value}" key, a filesystem-safe filename, and a
// human-readable display name. The mapping is a pure function of the
// publication record, with a deterministic content-hash fallback so every
// non-empty publication gets a key.
package identifier

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// Type names the identifier scheme backing a canonical key. Fallback
// priority is declaration order: PMID, DOI, PMC, arXiv, content hash.
type Type string

const (
	TypePMID  Type = "pmid"
	TypeDOI   Type = "doi"
	TypePMC   Type = "pmc"
	TypeArxiv Type = "arxiv"
	TypeHash  Type = "hash"
)

// ErrEmptyPublication is returned when a publication carries no title and
// no identifiers, so no key can be derived.
var ErrEmptyPublication = errors.New("publication has no identifiers and no title")

const (
	hashLen     = 16
	maxValueLen = 100
)

var pmcPattern = regexp.MustCompile(`^(?:PMC)?(\d+)$`)

// Canonical walks the fallback list and returns the publication's
// identifier type and value. The hash fallback is the first 16 hex
// characters of the SHA-256 of the normalized title.
func Canonical(pub types.Publication) (Type, string, error) {
	if pmid := strings.TrimSpace(pub.PMID); pmid != "" {
		return TypePMID, pmid, nil
	}
	if doi := NormalizeDOI(pub.DOI); doi != "" {
		return TypeDOI, doi, nil
	}
	if pmc := strings.TrimSpace(pub.PMCID); pmc != "" {
		if m := pmcPattern.FindStringSubmatch(pmc); m != nil {
			return TypePMC, "PMC" + m[1], nil
		}
		return TypePMC, pmc, nil
	}
	if arxiv := strings.TrimSpace(pub.ArxivID); arxiv != "" {
		return TypeArxiv, strings.TrimPrefix(arxiv, "arXiv:"), nil
	}

	title := normalizeTitle(pub.Title)
	if title == "" {
		return "", "", ErrEmptyPublication
	}
	sum := sha256.Sum256([]byte(title))
	return TypeHash, fmt.Sprintf("%x", sum)[:hashLen], nil
}

// Key returns the canonical "{type}:{value}" string. DOI slashes are
// preserved; this form is intended for database keys.
func Key(pub types.Publication) (string, error) {
	t, v, err := Canonical(pub)
	if err != nil {
		return "", err
	}
	return string(t) + ":" + v, nil
}

// Filename returns the filesystem-safe "{type}_{sanitized}.pdf" form.
func Filename(pub types.Publication) (string, error) {
	t, v, err := Canonical(pub)
	if err != nil {
		return "", err
	}
	return string(t) + "_" + Sanitize(v) + ".pdf", nil
}

// DisplayName returns a human-readable identifier, e.g. "DOI 10.1234/abc".
func DisplayName(pub types.Publication) (string, error) {
	t, v, err := Canonical(pub)
	if err != nil {
		return "", err
	}
	switch t {
	case TypePMID:
		return "PMID " + v, nil
	case TypeDOI:
		return "DOI " + v, nil
	case TypePMC:
		return v, nil
	case TypeArxiv:
		return "arXiv:" + v, nil
	default:
		return "hash " + v, nil
	}
}

// ParseFilename recovers the identifier type and sanitized value from a
// filename produced by Filename. Sanitization is lossy, so the value comes
// back in sanitized form; ParseKey(ParseFilename(f)) still identifies the
// same artifact because sanitization is deterministic.
func ParseFilename(name string) (Type, string, error) {
	stem := strings.TrimSuffix(name, ".pdf")
	idx := strings.Index(stem, "_")
	if idx <= 0 || idx == len(stem)-1 {
		return "", "", fmt.Errorf("unrecognized filename %q", name)
	}
	t := Type(stem[:idx])
	switch t {
	case TypePMID, TypeDOI, TypePMC, TypeArxiv, TypeHash:
		return t, stem[idx+1:], nil
	}
	return "", "", fmt.Errorf("unrecognized identifier type in %q", name)
}

// ParseKey splits a "{type}:{value}" key. The value keeps everything after
// the first colon, so DOIs containing colons survive.
func ParseKey(key string) (Type, string, error) {
	idx := strings.Index(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("malformed identifier key %q", key)
	}
	t := Type(key[:idx])
	switch t {
	case TypePMID, TypeDOI, TypePMC, TypeArxiv, TypeHash:
		return t, key[idx+1:], nil
	}
	return "", "", fmt.Errorf("unrecognized identifier type in key %q", key)
}

// Sanitize makes a value filesystem-safe: slashes, colons, whitespace, and
// anything outside [A-Za-z0-9_.-] become underscores, truncated to 100
// characters.
func Sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > maxValueLen {
		s = s[:maxValueLen]
	}
	return s
}

// NormalizeDOI strips resolver prefixes and the "doi:" scheme and
// lowercases the result, preserving the slashes of the bare DOI. DOIs
// compare case-insensitively, so the lowercase form is canonical.
func NormalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{
		"https://doi.org/", "http://doi.org/",
		"https://dx.doi.org/", "http://dx.doi.org/",
		"doi:",
	} {
		if strings.HasPrefix(doi, prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	return doi
}

// normalizeTitle lowercases the title and strips everything but letters,
// digits, and single spaces, so trivially reformatted titles hash alike.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
