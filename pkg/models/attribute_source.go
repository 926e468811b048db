package models

import "time"

// DateOfBirthLayout is the text form of a date of birth in the search index.
const DateOfBirthLayout = "2006-01-02"

// AttributeSource is the snapshot of identity fields one source record
// contributes to the search index. Empty strings and a nil DateOfBirth mean
// the record does not carry that field.
type AttributeSource struct {
	FirstName               string
	LastName                string
	DateOfBirth             *time.Time
	NationalInsuranceNumber string
	Trn                     string
	Postcode                string
	EmailAddress            string
}

// Equal reports whether two snapshots would produce the same search attributes.
func (s AttributeSource) Equal(other AttributeSource) bool {
	if s.FirstName != other.FirstName ||
		s.LastName != other.LastName ||
		s.NationalInsuranceNumber != other.NationalInsuranceNumber ||
		s.Trn != other.Trn ||
		s.Postcode != other.Postcode ||
		s.EmailAddress != other.EmailAddress {
		return false
	}
	return formatDate(s.DateOfBirth) == formatDate(other.DateOfBirth)
}

// DateOfBirthText returns the indexed form of the date of birth, or "".
func (s AttributeSource) DateOfBirthText() string {
	return formatDate(s.DateOfBirth)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateOfBirthLayout)
}
