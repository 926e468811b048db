package models

import (
	"time"

	"github.com/google/uuid"
)

// PersonStatus is the lifecycle state of a person record.
type PersonStatus string

const (
	PersonStatusActive      PersonStatus = "active"
	PersonStatusDeactivated PersonStatus = "deactivated"
)

// Person is the current identity of a teacher record.
type Person struct {
	PersonID                uuid.UUID    `json:"person_id"`
	Trn                     string       `json:"trn,omitempty"`
	FirstName               string       `json:"first_name"`
	MiddleName              string       `json:"middle_name,omitempty"`
	LastName                string       `json:"last_name"`
	DateOfBirth             *time.Time   `json:"date_of_birth,omitempty"`
	NationalInsuranceNumber string       `json:"national_insurance_number,omitempty"`
	EmailAddress            string       `json:"email_address,omitempty"`
	Status                  PersonStatus `json:"status"`
	CreatedOn               time.Time    `json:"created_on"`
	UpdatedOn               time.Time    `json:"updated_on"`
}

// IsActive returns true unless the person has been deactivated.
func (p *Person) IsActive() bool {
	return p.Status != PersonStatusDeactivated
}

// SearchAttributeSource returns the fields indexed for the current identity.
// Middle name and email address are stored but not indexed at this scope.
func (p *Person) SearchAttributeSource() AttributeSource {
	return AttributeSource{
		FirstName:               p.FirstName,
		LastName:                p.LastName,
		DateOfBirth:             p.DateOfBirth,
		NationalInsuranceNumber: p.NationalInsuranceNumber,
		Trn:                     p.Trn,
	}
}
