// Package models contains domain types for the person search index.
package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trs-platform/person-search/pkg/apperrors"
)

// SearchAttributeType identifies which identity field a search attribute holds.
type SearchAttributeType string

const (
	AttributeFirstName               SearchAttributeType = "FirstName"
	AttributeLastName                SearchAttributeType = "LastName"
	AttributeFullName                SearchAttributeType = "FullName"
	AttributeDateOfBirth             SearchAttributeType = "DateOfBirth"
	AttributeNationalInsuranceNumber SearchAttributeType = "NationalInsuranceNumber"
	AttributeTrn                     SearchAttributeType = "Trn"
	AttributePostcode                SearchAttributeType = "Postcode"
	AttributeEmailAddress            SearchAttributeType = "EmailAddress"
)

// ValidSearchAttributeTypes contains all valid attribute types.
var ValidSearchAttributeTypes = []SearchAttributeType{
	AttributeFirstName,
	AttributeLastName,
	AttributeFullName,
	AttributeDateOfBirth,
	AttributeNationalInsuranceNumber,
	AttributeTrn,
	AttributePostcode,
	AttributeEmailAddress,
}

// String returns the string representation of a SearchAttributeType.
func (t SearchAttributeType) String() string {
	return string(t)
}

// IsValid returns true if t is one of the known attribute types.
func (t SearchAttributeType) IsValid() bool {
	for _, v := range ValidSearchAttributeTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseSearchAttributeType resolves an attribute type name, ignoring case.
func ParseSearchAttributeType(s string) (SearchAttributeType, error) {
	for _, v := range ValidSearchAttributeTypes {
		if strings.EqualFold(string(v), s) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidAttributeType, s)
}

// SynonymTagPrefix marks an attribute derived from the synonym table.
const SynonymTagPrefix = "Synonym:"

// SynonymTag returns the provenance tag for a synonym of original.
func SynonymTag(original string) string {
	return SynonymTagPrefix + original
}

// SearchAttribute is one (person, type, value) entry of the search index.
// Rows are never updated in place; a scope's rows are replaced as a batch.
type SearchAttribute struct {
	PersonID uuid.UUID           `json:"person_id"`
	Scope    IndexScope          `json:"-"`
	Type     SearchAttributeType `json:"attribute_type"`
	Value    string              `json:"attribute_value"`
	Tags     []string            `json:"tags"`
}

// IsSynonym reports whether the attribute came from synonym fan-out.
func (a *SearchAttribute) IsSynonym() bool {
	for _, tag := range a.Tags {
		if strings.HasPrefix(tag, SynonymTagPrefix) {
			return true
		}
	}
	return false
}

// ScopeKey returns the stored scope key, or "" when no scope is set.
func (a *SearchAttribute) ScopeKey() string {
	if a.Scope == nil {
		return ""
	}
	return a.Scope.Key()
}

// SearchAttributeMatch is one index row that matched a lookup, with the scope
// and tags that explain why the person is a candidate.
type SearchAttributeMatch struct {
	PersonID uuid.UUID           `json:"person_id"`
	Scope    IndexScope          `json:"-"`
	ScopeKey string              `json:"attribute_key"`
	Type     SearchAttributeType `json:"attribute_type"`
	Value    string              `json:"attribute_value"`
	Tags     []string            `json:"tags"`
}
