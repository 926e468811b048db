package models

import (
	"time"

	"github.com/google/uuid"
)

// PreviousName is a historical name of a person.
type PreviousName struct {
	PreviousNameID uuid.UUID  `json:"previous_name_id"`
	PersonID       uuid.UUID  `json:"person_id"`
	FirstName      string     `json:"first_name"`
	MiddleName     string     `json:"middle_name,omitempty"`
	LastName       string     `json:"last_name"`
	CreatedOn      time.Time  `json:"created_on"`
	UpdatedOn      time.Time  `json:"updated_on"`
	DeletedOn      *time.Time `json:"deleted_on,omitempty"`
}

// IsDeleted reports whether the previous name has been soft-deleted.
func (n *PreviousName) IsDeleted() bool {
	return n.DeletedOn != nil
}

// Scope returns the index scope owned by this previous name.
func (n *PreviousName) Scope() IndexScope {
	return PreviousNameScope{PreviousNameID: n.PreviousNameID}
}

// SearchAttributeSource returns the fields indexed for a previous name: first
// and last name only.
func (n *PreviousName) SearchAttributeSource() AttributeSource {
	return AttributeSource{
		FirstName: n.FirstName,
		LastName:  n.LastName,
	}
}
