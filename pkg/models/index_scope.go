package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trs-platform/person-search/pkg/apperrors"
)

// Stored scope key forms.
const (
	CurrentIdentityScopeKey  = "current"
	previousNameScopePrefix  = "previous_name:"
	tpsEmploymentScopePrefix = "tps_employment:"
)

// IndexScope identifies which source record owns a group of search attributes.
// Rows sharing a person and scope are refreshed together; different scopes of
// the same person are independent and additive.
//
// The set of implementations is closed: CurrentIdentityScope,
// PreviousNameScope and TpsEmploymentScope.
type IndexScope interface {
	// Key is the value stored in person_search_attributes.attribute_key.
	Key() string
	isIndexScope()
}

// CurrentIdentityScope owns attributes derived from the person record itself.
type CurrentIdentityScope struct{}

func (CurrentIdentityScope) Key() string   { return CurrentIdentityScopeKey }
func (CurrentIdentityScope) isIndexScope() {}

// PreviousNameScope owns attributes derived from one previous-name record.
type PreviousNameScope struct {
	PreviousNameID uuid.UUID
}

func (s PreviousNameScope) Key() string { return previousNameScopePrefix + s.PreviousNameID.String() }
func (PreviousNameScope) isIndexScope() {}

// TpsEmploymentScope owns attributes derived from one pension-scheme employment record.
type TpsEmploymentScope struct {
	TpsEmploymentID uuid.UUID
}

func (s TpsEmploymentScope) Key() string {
	return tpsEmploymentScopePrefix + s.TpsEmploymentID.String()
}
func (TpsEmploymentScope) isIndexScope() {}

// ParseIndexScope decodes a stored attribute_key.
func ParseIndexScope(key string) (IndexScope, error) {
	switch {
	case key == CurrentIdentityScopeKey:
		return CurrentIdentityScope{}, nil
	case strings.HasPrefix(key, previousNameScopePrefix):
		id, err := uuid.Parse(strings.TrimPrefix(key, previousNameScopePrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidScopeKey, key)
		}
		return PreviousNameScope{PreviousNameID: id}, nil
	case strings.HasPrefix(key, tpsEmploymentScopePrefix):
		id, err := uuid.Parse(strings.TrimPrefix(key, tpsEmploymentScopePrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidScopeKey, key)
		}
		return TpsEmploymentScope{TpsEmploymentID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidScopeKey, key)
	}
}
