package models

import (
	"time"

	"github.com/google/uuid"
)

// TpsEmployment is an employment row reported through the Teachers' Pension
// Scheme. It carries the contact details the employer held for the person.
type TpsEmployment struct {
	TpsEmploymentID         uuid.UUID  `json:"tps_employment_id"`
	PersonID                uuid.UUID  `json:"person_id"`
	EstablishmentUrn        string     `json:"establishment_urn"`
	StartDate               time.Time  `json:"start_date"`
	EndDate                 *time.Time `json:"end_date,omitempty"`
	EmploymentType          string     `json:"employment_type,omitempty"`
	NationalInsuranceNumber string     `json:"national_insurance_number,omitempty"`
	PersonPostcode          string     `json:"person_postcode,omitempty"`
	PersonEmailAddress      string     `json:"person_email_address,omitempty"`
	CreatedOn               time.Time  `json:"created_on"`
	UpdatedOn               time.Time  `json:"updated_on"`
	DeletedOn               *time.Time `json:"deleted_on,omitempty"`
}

// IsDeleted reports whether the employment has been soft-deleted.
func (e *TpsEmployment) IsDeleted() bool {
	return e.DeletedOn != nil
}

// Scope returns the index scope owned by this employment.
func (e *TpsEmployment) Scope() IndexScope {
	return TpsEmploymentScope{TpsEmploymentID: e.TpsEmploymentID}
}

// SearchAttributeSource returns the self-reported identity fields the
// employment row carries.
func (e *TpsEmployment) SearchAttributeSource() AttributeSource {
	return AttributeSource{
		NationalInsuranceNumber: e.NationalInsuranceNumber,
		Postcode:                e.PersonPostcode,
		EmailAddress:            e.PersonEmailAddress,
	}
}
