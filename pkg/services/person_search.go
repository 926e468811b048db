package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trs-platform/person-search/pkg/apperrors"
	"github.com/trs-platform/person-search/pkg/audit"
	"github.com/trs-platform/person-search/pkg/database"
	"github.com/trs-platform/person-search/pkg/logging"
	"github.com/trs-platform/person-search/pkg/models"
	"github.com/trs-platform/person-search/pkg/repositories"
)

// PersonSearchService answers attribute lookups against the search index.
// Results are candidates: the index over-matches through synonyms and
// historical names, so callers confirm each hit against the source records.
type PersonSearchService interface {
	// Find returns the ids of persons with an attribute of attrType equal to
	// value, ignoring case.
	Find(ctx context.Context, attrType models.SearchAttributeType, value string) ([]uuid.UUID, error)

	// FindCandidates returns the matching rows with their scope and tags.
	FindCandidates(ctx context.Context, attrType models.SearchAttributeType, value string) ([]models.SearchAttributeMatch, error)
}

type personSearchService struct {
	db       database.Transactor
	attrRepo repositories.SearchAttributeRepository
	auditor  *audit.SearchAuditor
	logger   *zap.Logger
}

// NewPersonSearchService creates a PersonSearchService.
func NewPersonSearchService(
	db database.Transactor,
	attrRepo repositories.SearchAttributeRepository,
	auditor *audit.SearchAuditor,
	logger *zap.Logger,
) PersonSearchService {
	return &personSearchService{
		db:       db,
		attrRepo: attrRepo,
		auditor:  auditor,
		logger:   logger.Named("person-search"),
	}
}

var _ PersonSearchService = (*personSearchService)(nil)

func (s *personSearchService) Find(ctx context.Context, attrType models.SearchAttributeType, value string) ([]uuid.UUID, error) {
	if !attrType.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidAttributeType, attrType)
	}
	if isBlank(value) {
		return []uuid.UUID{}, nil
	}

	var ids []uuid.UUID
	err := s.db.RunInTx(ctx, database.ReadOnly, func(ctx context.Context) error {
		var err error
		ids, err = s.attrRepo.Find(ctx, attrType, value)
		return err
	})
	if err != nil {
		s.logger.Error("Person search failed",
			zap.String("attribute_type", attrType.String()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	s.auditor.LogLookup(ctx, attrType.String(), value, len(ids))
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

func (s *personSearchService) FindCandidates(ctx context.Context, attrType models.SearchAttributeType, value string) ([]models.SearchAttributeMatch, error) {
	if !attrType.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidAttributeType, attrType)
	}
	if isBlank(value) {
		return []models.SearchAttributeMatch{}, nil
	}

	var matches []models.SearchAttributeMatch
	err := s.db.RunInTx(ctx, database.ReadOnly, func(ctx context.Context) error {
		var err error
		matches, err = s.attrRepo.FindWithProvenance(ctx, attrType, value)
		return err
	})
	if err != nil {
		s.logger.Error("Person candidate search failed",
			zap.String("attribute_type", attrType.String()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	s.auditor.LogLookup(ctx, attrType.String(), value, len(matches))
	if matches == nil {
		matches = []models.SearchAttributeMatch{}
	}
	return matches, nil
}
