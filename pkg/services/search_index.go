package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trs-platform/person-search/pkg/audit"
	"github.com/trs-platform/person-search/pkg/models"
	"github.com/trs-platform/person-search/pkg/repositories"
)

// SearchIndexService keeps one (person, scope) group of the search index in
// step with its source record. Every call runs in the caller's transaction and
// any error must abort it; nothing here retries.
type SearchIndexService interface {
	// RefreshScope recomputes the scope's rows from source and replaces the
	// stored rows with them. Returns the number of rows written.
	RefreshScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope, source models.AttributeSource) (int, error)

	// RetireScope removes every row of the scope. Returns the number removed.
	RetireScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope) (int64, error)
}

type searchIndexService struct {
	attrRepo repositories.SearchAttributeRepository
	synonyms SynonymLookup
	auditor  *audit.SearchAuditor
	logger   *zap.Logger
}

// NewSearchIndexService creates a SearchIndexService.
func NewSearchIndexService(
	attrRepo repositories.SearchAttributeRepository,
	synonyms SynonymLookup,
	auditor *audit.SearchAuditor,
	logger *zap.Logger,
) SearchIndexService {
	return &searchIndexService{
		attrRepo: attrRepo,
		synonyms: synonyms,
		auditor:  auditor,
		logger:   logger.Named("search-index"),
	}
}

var _ SearchIndexService = (*searchIndexService)(nil)

func (s *searchIndexService) RefreshScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope, source models.AttributeSource) (int, error) {
	attrs, err := ComposeSearchAttributes(ctx, s.synonyms, personID, scope, source)
	if err != nil {
		return 0, err
	}

	if err := s.attrRepo.ReplaceScope(ctx, personID, scope, attrs); err != nil {
		return 0, fmt.Errorf("failed to refresh scope %s: %w", scope.Key(), err)
	}

	s.logger.Debug("Refreshed search scope",
		zap.String("person_id", personID.String()),
		zap.String("scope", scope.Key()),
		zap.Int("rows", len(attrs)))

	return len(attrs), nil
}

func (s *searchIndexService) RetireScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope) (int64, error) {
	removed, err := s.attrRepo.RemoveScope(ctx, personID, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to retire scope %s: %w", scope.Key(), err)
	}

	s.logger.Debug("Retired search scope",
		zap.String("person_id", personID.String()),
		zap.String("scope", scope.Key()),
		zap.Int64("rows", removed))
	s.auditor.LogScopeRetired(ctx, personID, scope.Key(), removed)

	return removed, nil
}
