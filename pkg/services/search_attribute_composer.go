package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trs-platform/person-search/pkg/models"
)

// SynonymLookup returns the synonyms listed for a canonical name. A name with
// no entry yields no synonyms and no error.
type SynonymLookup interface {
	GetSynonyms(ctx context.Context, name string) ([]string, error)
}

// ComposeSearchAttributes turns one snapshot of a source record into the full
// set of index rows for (personID, scope).
//
// Rows come out in a fixed order: direct attributes in field order, then the
// first name's synonyms in table order, then FullName. FullName is emitted
// only when both a first and a last name were emitted directly.
func ComposeSearchAttributes(
	ctx context.Context,
	synonyms SynonymLookup,
	personID uuid.UUID,
	scope models.IndexScope,
	source models.AttributeSource,
) ([]models.SearchAttribute, error) {
	c := composition{personID: personID, scope: scope}

	firstName := c.direct(models.AttributeFirstName, source.FirstName)
	lastName := c.direct(models.AttributeLastName, source.LastName)
	c.direct(models.AttributeDateOfBirth, source.DateOfBirthText())
	c.direct(models.AttributeNationalInsuranceNumber, source.NationalInsuranceNumber)
	c.direct(models.AttributeTrn, source.Trn)
	c.direct(models.AttributePostcode, source.Postcode)
	c.direct(models.AttributeEmailAddress, source.EmailAddress)

	if firstName {
		names, err := synonyms.GetSynonyms(ctx, source.FirstName)
		if err != nil {
			return nil, fmt.Errorf("failed to look up synonyms: %w", err)
		}
		tag := models.SynonymTag(source.FirstName)
		for _, name := range names {
			if isBlank(name) {
				continue
			}
			c.add(models.AttributeFirstName, name, []string{tag})
		}
	}

	if firstName && lastName {
		c.add(models.AttributeFullName, source.FirstName+" "+source.LastName, nil)
	}

	return c.attrs, nil
}

type composition struct {
	personID uuid.UUID
	scope    models.IndexScope
	attrs    []models.SearchAttribute
}

// direct adds an untagged row for a present value and reports whether it did.
func (c *composition) direct(attrType models.SearchAttributeType, value string) bool {
	if isBlank(value) {
		return false
	}
	c.add(attrType, value, nil)
	return true
}

func (c *composition) add(attrType models.SearchAttributeType, value string, tags []string) {
	if tags == nil {
		tags = []string{}
	}
	c.attrs = append(c.attrs, models.SearchAttribute{
		PersonID: c.personID,
		Scope:    c.scope,
		Type:     attrType,
		Value:    value,
		Tags:     tags,
	})
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
