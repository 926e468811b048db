package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/trs-platform/person-search/pkg/models"
	"github.com/trs-platform/person-search/pkg/repositories"
)

// recordState is a source record as the index sees it: whether it currently
// owns rows, and the fields it would contribute.
type recordState struct {
	live   bool
	source models.AttributeSource
}

// syncScope applies one source record transition to its scope:
// live -> gone retires, gone -> live refreshes, live -> live refreshes only
// when an indexed field changed.
func syncScope(ctx context.Context, index SearchIndexService, personID uuid.UUID, scope models.IndexScope, before, after recordState) error {
	switch {
	case !after.live:
		if !before.live {
			return nil
		}
		_, err := index.RetireScope(ctx, personID, scope)
		return err
	case !before.live, !before.source.Equal(after.source):
		_, err := index.RefreshScope(ctx, personID, scope, after.source)
		return err
	default:
		return nil
	}
}

func personState(p *models.Person) recordState {
	if p == nil || !p.IsActive() {
		return recordState{}
	}
	return recordState{live: true, source: p.SearchAttributeSource()}
}

func previousNameState(n *models.PreviousName) recordState {
	if n == nil || n.IsDeleted() {
		return recordState{}
	}
	return recordState{live: true, source: n.SearchAttributeSource()}
}

func tpsEmploymentState(e *models.TpsEmployment) recordState {
	if e == nil || e.IsDeleted() {
		return recordState{}
	}
	return recordState{live: true, source: e.SearchAttributeSource()}
}

// cascade reports how a person change affects the scopes of records the
// person owns: +1 to refresh them, -1 to retire them, 0 for nothing.
func cascade(change repositories.PersonChange) int {
	switch {
	case change.After == nil:
		// hard delete; owned records and their rows go with the person row
		return 0
	case change.WasActive() && !change.IsActive():
		return -1
	case change.Before != nil && !change.WasActive() && change.IsActive():
		return 1
	default:
		return 0
	}
}

// ============================================================================
// Current identity
// ============================================================================

// PersonIndexBinding indexes the current identity of each person.
type PersonIndexBinding struct {
	index SearchIndexService
}

// NewPersonIndexBinding creates a PersonIndexBinding.
func NewPersonIndexBinding(index SearchIndexService) *PersonIndexBinding {
	return &PersonIndexBinding{index: index}
}

var _ repositories.PersonHook = (*PersonIndexBinding)(nil)

func (b *PersonIndexBinding) OnPersonChanged(ctx context.Context, change repositories.PersonChange) error {
	return syncScope(ctx, b.index, change.PersonID(), models.CurrentIdentityScope{},
		personState(change.Before), personState(change.After))
}

// ============================================================================
// Previous names
// ============================================================================

// PreviousNameIndexBinding indexes each live previous name of an active person.
type PreviousNameIndexBinding struct {
	index         SearchIndexService
	persons       repositories.PersonRepository
	previousNames repositories.PreviousNameRepository
}

// NewPreviousNameIndexBinding creates a PreviousNameIndexBinding.
func NewPreviousNameIndexBinding(
	index SearchIndexService,
	persons repositories.PersonRepository,
	previousNames repositories.PreviousNameRepository,
) *PreviousNameIndexBinding {
	return &PreviousNameIndexBinding{index: index, persons: persons, previousNames: previousNames}
}

var (
	_ repositories.PreviousNameHook = (*PreviousNameIndexBinding)(nil)
	_ repositories.PersonHook       = (*PreviousNameIndexBinding)(nil)
)

func (b *PreviousNameIndexBinding) OnPreviousNameChanged(ctx context.Context, change repositories.PreviousNameChange) error {
	current := change.Current()

	// The repository write already share-locked the owner; this read holds off a
	// concurrent deactivation until the refresh commits.
	owner, err := b.persons.GetForShare(ctx, current.PersonID)
	if err != nil {
		return err
	}
	if !owner.IsActive() {
		return nil
	}

	return syncScope(ctx, b.index, current.PersonID, current.Scope(),
		previousNameState(change.Before), previousNameState(change.After))
}

func (b *PreviousNameIndexBinding) OnPersonChanged(ctx context.Context, change repositories.PersonChange) error {
	direction := cascade(change)
	if direction == 0 {
		return nil
	}

	names, err := b.previousNames.ListByPerson(ctx, change.PersonID())
	if err != nil {
		return err
	}

	for _, name := range names {
		if direction > 0 {
			_, err = b.index.RefreshScope(ctx, name.PersonID, name.Scope(), name.SearchAttributeSource())
		} else {
			_, err = b.index.RetireScope(ctx, name.PersonID, name.Scope())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Pension-scheme employments
// ============================================================================

// TpsEmploymentIndexBinding indexes the contact details carried by each live
// employment of an active person.
type TpsEmploymentIndexBinding struct {
	index       SearchIndexService
	persons     repositories.PersonRepository
	employments repositories.TpsEmploymentRepository
}

// NewTpsEmploymentIndexBinding creates a TpsEmploymentIndexBinding.
func NewTpsEmploymentIndexBinding(
	index SearchIndexService,
	persons repositories.PersonRepository,
	employments repositories.TpsEmploymentRepository,
) *TpsEmploymentIndexBinding {
	return &TpsEmploymentIndexBinding{index: index, persons: persons, employments: employments}
}

var (
	_ repositories.TpsEmploymentHook = (*TpsEmploymentIndexBinding)(nil)
	_ repositories.PersonHook        = (*TpsEmploymentIndexBinding)(nil)
)

func (b *TpsEmploymentIndexBinding) OnTpsEmploymentChanged(ctx context.Context, change repositories.TpsEmploymentChange) error {
	current := change.Current()

	owner, err := b.persons.GetForShare(ctx, current.PersonID)
	if err != nil {
		return err
	}
	if !owner.IsActive() {
		return nil
	}

	return syncScope(ctx, b.index, current.PersonID, current.Scope(),
		tpsEmploymentState(change.Before), tpsEmploymentState(change.After))
}

func (b *TpsEmploymentIndexBinding) OnPersonChanged(ctx context.Context, change repositories.PersonChange) error {
	direction := cascade(change)
	if direction == 0 {
		return nil
	}

	employments, err := b.employments.ListByPerson(ctx, change.PersonID())
	if err != nil {
		return err
	}

	for _, employment := range employments {
		if direction > 0 {
			_, err = b.index.RefreshScope(ctx, employment.PersonID, employment.Scope(), employment.SearchAttributeSource())
		} else {
			_, err = b.index.RetireScope(ctx, employment.PersonID, employment.Scope())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RegisterSearchIndexBindings attaches the index bindings to the source
// repositories. Call once during wiring, before any mutation.
func RegisterSearchIndexBindings(
	index SearchIndexService,
	persons repositories.PersonRepository,
	previousNames repositories.PreviousNameRepository,
	employments repositories.TpsEmploymentRepository,
) {
	previousNameBinding := NewPreviousNameIndexBinding(index, persons, previousNames)
	employmentBinding := NewTpsEmploymentIndexBinding(index, persons, employments)

	persons.AddHook(NewPersonIndexBinding(index))
	persons.AddHook(previousNameBinding)
	persons.AddHook(employmentBinding)
	previousNames.AddHook(previousNameBinding)
	employments.AddHook(employmentBinding)
}
