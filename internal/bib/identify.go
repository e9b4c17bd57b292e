// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import "strings"

// IdentifierType classifies an input identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeDOI
	TypePMID
	TypeSourceID
)

func (t IdentifierType) String() string {
	switch t {
	case TypeDOI:
		return "doi"
	case TypePMID:
		return "pmid"
	case TypeSourceID:
		return "source_id"
	default:
		return "unknown"
	}
}

// Classify determines the identifier type and returns the normalized
// form. DOIs (including doi: and doi.org URL forms) and numeric PMIDs
// are recognized directly; 40-character hex strings are treated as
// graph-API paper ids. Anything else is unknown and returned trimmed.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if doi := NormalizeDOI(identifier); doi != "" {
		return TypeDOI, doi
	}
	if pmid := NormalizePMID(identifier); pmid != "" {
		return TypePMID, pmid
	}
	if isHexID(identifier) {
		return TypeSourceID, identifier
	}
	return TypeUnknown, identifier
}

// isHexID reports whether s looks like a graph-API paper id: a
// 40-character lowercase hex SHA-1.
func isHexID(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
