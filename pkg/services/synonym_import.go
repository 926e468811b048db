package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/trs-platform/person-search/pkg/database"
	"github.com/trs-platform/person-search/pkg/repositories"
)

// SynonymImportService loads name synonyms from a YAML document of the form
//
//	Robert: [Bob, Rob, Bobby]
//	Elizabeth: [Liz, Beth]
type SynonymImportService interface {
	// Import upserts every entry in one transaction and returns how many
	// entries were written. Existing rows are not refreshed; run a reindex.
	Import(ctx context.Context, r io.Reader) (int, error)
}

type synonymImportService struct {
	db       database.Transactor
	synonyms repositories.NameSynonymsRepository
	logger   *zap.Logger
}

// NewSynonymImportService creates a SynonymImportService.
func NewSynonymImportService(db database.Transactor, synonyms repositories.NameSynonymsRepository, logger *zap.Logger) SynonymImportService {
	return &synonymImportService{
		db:       db,
		synonyms: synonyms,
		logger:   logger.Named("synonym-import"),
	}
}

var _ SynonymImportService = (*synonymImportService)(nil)

func (s *synonymImportService) Import(ctx context.Context, r io.Reader) (int, error) {
	entries, err := ParseSynonyms(r)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	err = s.db.RunInTx(ctx, database.ReadWrite, func(ctx context.Context) error {
		for _, name := range names {
			if err := s.synonyms.Upsert(ctx, name, entries[name]); err != nil {
				return fmt.Errorf("failed to import synonyms for %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Imported name synonyms", zap.Int("entries", len(names)))
	return len(names), nil
}

// ParseSynonyms decodes a synonym document. Names and synonyms are trimmed;
// blank synonyms, duplicates (ignoring case) and synonyms equal to their
// canonical name are dropped, keeping first-seen order.
func ParseSynonyms(r io.Reader) (map[string][]string, error) {
	var raw map[string][]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("failed to parse synonyms: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make(map[string][]string, len(raw))
	canonical := make(map[string]string, len(raw))
	for _, key := range keys {
		synonyms := raw[key]
		name := strings.TrimSpace(key)
		if name == "" {
			return nil, fmt.Errorf("failed to parse synonyms: blank name")
		}
		if other, ok := canonical[strings.ToLower(name)]; ok {
			return nil, fmt.Errorf("failed to parse synonyms: %q and %q are the same name", other, name)
		}
		canonical[strings.ToLower(name)] = name

		seen := map[string]bool{strings.ToLower(name): true}
		cleaned := []string{}
		for _, synonym := range synonyms {
			synonym = strings.TrimSpace(synonym)
			if synonym == "" || seen[strings.ToLower(synonym)] {
				continue
			}
			seen[strings.ToLower(synonym)] = true
			cleaned = append(cleaned, synonym)
		}

		entries[name] = cleaned
	}

	return entries, nil
}
