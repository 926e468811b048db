package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/trs-platform/person-search/pkg/models"
)

// Mutation hooks are invoked synchronously by the repositories after the SQL
// statement for a change has run, with the same context and therefore the
// same transaction. A hook error is returned from the repository method and
// must abort the caller's transaction.

// PersonChange describes one mutation of a person record.
// Before is nil for an insert; After is nil for a hard delete.
type PersonChange struct {
	Before *models.Person
	After  *models.Person
}

// PersonID returns the id of the changed person.
func (c PersonChange) PersonID() uuid.UUID {
	if c.After != nil {
		return c.After.PersonID
	}
	return c.Before.PersonID
}

// WasActive reports whether the person existed and was active before the change.
func (c PersonChange) WasActive() bool {
	return c.Before != nil && c.Before.IsActive()
}

// IsActive reports whether the person exists and is active after the change.
func (c PersonChange) IsActive() bool {
	return c.After != nil && c.After.IsActive()
}

// PersonHook observes person mutations.
type PersonHook interface {
	OnPersonChanged(ctx context.Context, change PersonChange) error
}

// PreviousNameChange describes one mutation of a previous-name record.
// Before is nil for an insert; After is nil for a hard delete.
type PreviousNameChange struct {
	Before *models.PreviousName
	After  *models.PreviousName
}

// Current returns the post-change record, falling back to the pre-change one.
func (c PreviousNameChange) Current() *models.PreviousName {
	if c.After != nil {
		return c.After
	}
	return c.Before
}

// PreviousNameHook observes previous-name mutations.
type PreviousNameHook interface {
	OnPreviousNameChanged(ctx context.Context, change PreviousNameChange) error
}

// TpsEmploymentChange describes one mutation of an employment record.
// Before is nil for an insert; After is nil for a hard delete.
type TpsEmploymentChange struct {
	Before *models.TpsEmployment
	After  *models.TpsEmployment
}

// Current returns the post-change record, falling back to the pre-change one.
func (c TpsEmploymentChange) Current() *models.TpsEmployment {
	if c.After != nil {
		return c.After
	}
	return c.Before
}

// TpsEmploymentHook observes employment mutations.
type TpsEmploymentHook interface {
	OnTpsEmploymentChanged(ctx context.Context, change TpsEmploymentChange) error
}
