package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trs-platform/person-search/pkg/apperrors"
	"github.com/trs-platform/person-search/pkg/database"
	"github.com/trs-platform/person-search/pkg/models"
	"github.com/trs-platform/person-search/pkg/repositories"
	"github.com/trs-platform/person-search/pkg/retry"
)

// ReindexSummary reports what a reindex run did.
type ReindexSummary struct {
	Persons            int           `json:"persons"`
	DeactivatedPersons int           `json:"deactivated_persons"`
	ScopesRefreshed    int           `json:"scopes_refreshed"`
	RowsWritten        int           `json:"rows_written"`
	StaleRowsRemoved   int64         `json:"stale_rows_removed"`
	Duration           time.Duration `json:"duration"`
}

func (s *ReindexSummary) add(other ReindexSummary) {
	s.Persons += other.Persons
	s.DeactivatedPersons += other.DeactivatedPersons
	s.ScopesRefreshed += other.ScopesRefreshed
	s.RowsWritten += other.RowsWritten
	s.StaleRowsRemoved += other.StaleRowsRemoved
}

// ReindexOptions tunes a reindex run.
type ReindexOptions struct {
	Concurrency int
	BatchSize   int
	Retry       *retry.Config
}

// ReindexService rebuilds the search index from the source records. Synonym
// table edits never refresh existing rows, so a reindex is how they reach the
// index.
type ReindexService interface {
	// ReindexAll rebuilds every person, one transaction per person.
	ReindexAll(ctx context.Context) (*ReindexSummary, error)

	// ReindexPerson rebuilds every scope of one person in a single transaction.
	ReindexPerson(ctx context.Context, personID uuid.UUID) (*ReindexSummary, error)
}

type reindexService struct {
	db            database.Transactor
	persons       repositories.PersonRepository
	previousNames repositories.PreviousNameRepository
	employments   repositories.TpsEmploymentRepository
	attrRepo      repositories.SearchAttributeRepository
	index         SearchIndexService
	opts          ReindexOptions
	logger        *zap.Logger
}

// NewReindexService creates a ReindexService.
func NewReindexService(
	db database.Transactor,
	persons repositories.PersonRepository,
	previousNames repositories.PreviousNameRepository,
	employments repositories.TpsEmploymentRepository,
	attrRepo repositories.SearchAttributeRepository,
	index SearchIndexService,
	opts ReindexOptions,
	logger *zap.Logger,
) ReindexService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 500
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	return &reindexService{
		db:            db,
		persons:       persons,
		previousNames: previousNames,
		employments:   employments,
		attrRepo:      attrRepo,
		index:         index,
		opts:          opts,
		logger:        logger.Named("reindex"),
	}
}

var _ ReindexService = (*reindexService)(nil)

func (s *reindexService) ReindexAll(ctx context.Context) (*ReindexSummary, error) {
	start := time.Now()
	total := &ReindexSummary{}
	var mu sync.Mutex

	after := uuid.Nil
	for {
		var ids []uuid.UUID
		err := s.db.RunInTx(ctx, database.ReadOnly, func(ctx context.Context) error {
			var err error
			ids, err = s.persons.ListIDs(ctx, after, s.opts.BatchSize)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("failed to list persons: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Concurrency)

		for _, id := range ids {
			g.Go(func() error {
				summary, err := s.ReindexPerson(gctx, id)
				if err != nil {
					return fmt.Errorf("failed to reindex person %s: %w", id, err)
				}
				mu.Lock()
				total.add(*summary)
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			total.Duration = time.Since(start)
			return total, err
		}

		s.logger.Info("Reindexed page",
			zap.Int("persons", len(ids)),
			zap.Int("total_persons", total.Persons))

		after = ids[len(ids)-1]
		if len(ids) < s.opts.BatchSize {
			break
		}
	}

	total.Duration = time.Since(start)
	s.logger.Info("Reindex complete",
		zap.Int("persons", total.Persons),
		zap.Int("deactivated_persons", total.DeactivatedPersons),
		zap.Int("scopes_refreshed", total.ScopesRefreshed),
		zap.Int("rows_written", total.RowsWritten),
		zap.Int64("stale_rows_removed", total.StaleRowsRemoved),
		zap.Duration("duration", total.Duration))

	return total, nil
}

func (s *reindexService) ReindexPerson(ctx context.Context, personID uuid.UUID) (*ReindexSummary, error) {
	var summary ReindexSummary

	err := retry.DoIfRetryable(ctx, s.opts.Retry, func() error {
		summary = ReindexSummary{}
		return s.db.RunInTx(ctx, database.ReadWrite, func(ctx context.Context) error {
			return s.reindexPerson(ctx, personID, &summary)
		})
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// deleted since the page was listed
			return &ReindexSummary{}, nil
		}
		return nil, err
	}

	return &summary, nil
}

func (s *reindexService) reindexPerson(ctx context.Context, personID uuid.UUID, summary *ReindexSummary) error {
	person, err := s.persons.GetForUpdate(ctx, personID)
	if err != nil {
		return err
	}
	summary.Persons = 1

	if !person.IsActive() {
		summary.DeactivatedPersons = 1
		removed, err := s.attrRepo.RemoveOtherScopes(ctx, personID, nil)
		if err != nil {
			return err
		}
		summary.StaleRowsRemoved = removed
		return nil
	}

	keep := []models.IndexScope{models.CurrentIdentityScope{}}
	if err := s.refresh(ctx, summary, personID, models.CurrentIdentityScope{}, person.SearchAttributeSource()); err != nil {
		return err
	}

	names, err := s.previousNames.ListByPerson(ctx, personID)
	if err != nil {
		return err
	}
	for _, name := range names {
		keep = append(keep, name.Scope())
		if err := s.refresh(ctx, summary, personID, name.Scope(), name.SearchAttributeSource()); err != nil {
			return err
		}
	}

	employments, err := s.employments.ListByPerson(ctx, personID)
	if err != nil {
		return err
	}
	for _, employment := range employments {
		keep = append(keep, employment.Scope())
		if err := s.refresh(ctx, summary, personID, employment.Scope(), employment.SearchAttributeSource()); err != nil {
			return err
		}
	}

	removed, err := s.attrRepo.RemoveOtherScopes(ctx, personID, keep)
	if err != nil {
		return err
	}
	summary.StaleRowsRemoved = removed

	return nil
}

func (s *reindexService) refresh(ctx context.Context, summary *ReindexSummary, personID uuid.UUID, scope models.IndexScope, source models.AttributeSource) error {
	rows, err := s.index.RefreshScope(ctx, personID, scope, source)
	if err != nil {
		return err
	}
	summary.ScopesRefreshed++
	summary.RowsWritten += rows
	return nil
}
