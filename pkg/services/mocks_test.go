package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/trs-platform/person-search/pkg/apperrors"
	"github.com/trs-platform/person-search/pkg/audit"
	"github.com/trs-platform/person-search/pkg/models"
	"github.com/trs-platform/person-search/pkg/repositories"
)

// ============================================================================
// Transactor
// ============================================================================

// mockTransactor runs fn directly. Queued failures are returned, one per
// call, before fn runs.
type mockTransactor struct {
	mu       sync.Mutex
	opts     []pgx.TxOptions
	failures []error
}

func (m *mockTransactor) RunInTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.opts = append(m.opts, opts)
	var err error
	if len(m.failures) > 0 {
		err = m.failures[0]
		m.failures = m.failures[1:]
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return fn(ctx)
}

func (m *mockTransactor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opts)
}

// ============================================================================
// Synonyms
// ============================================================================

type mockSynonyms struct {
	mu      sync.Mutex
	entries map[string][]string
	err     error
	lookups []string
}

func newMockSynonyms(entries map[string][]string) *mockSynonyms {
	return &mockSynonyms{entries: entries}
}

func (m *mockSynonyms) GetSynonyms(ctx context.Context, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, name)
	if m.err != nil {
		return nil, m.err
	}
	for canonical, synonyms := range m.entries {
		if strings.EqualFold(canonical, name) {
			return synonyms, nil
		}
	}
	return nil, nil
}

func (m *mockSynonyms) Upsert(ctx context.Context, name string, synonyms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.entries == nil {
		m.entries = map[string][]string{}
	}
	m.entries[name] = synonyms
	return nil
}

func (m *mockSynonyms) List(ctx context.Context) ([]*models.NameSynonyms, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NameSynonyms
	for name, synonyms := range m.entries {
		out = append(out, &models.NameSynonyms{Name: name, Synonyms: synonyms})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ repositories.NameSynonymsRepository = (*mockSynonyms)(nil)

// ============================================================================
// Attribute store
// ============================================================================

// memAttributeStore is an in-memory SearchAttributeRepository. Values match
// case-insensitively like the case_insensitive collation.
type memAttributeStore struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]map[string][]models.SearchAttribute
	replaces   int
	replaceErr error
	removeErr  error
}

func newMemAttributeStore() *memAttributeStore {
	return &memAttributeStore{rows: map[uuid.UUID]map[string][]models.SearchAttribute{}}
}

var _ repositories.SearchAttributeRepository = (*memAttributeStore)(nil)

func (m *memAttributeStore) ReplaceScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope, attrs []models.SearchAttribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaces++

	scopes, ok := m.rows[personID]
	if !ok {
		scopes = map[string][]models.SearchAttribute{}
		m.rows[personID] = scopes
	}
	delete(scopes, scope.Key())
	if len(attrs) > 0 {
		scopes[scope.Key()] = append([]models.SearchAttribute(nil), attrs...)
	}
	return nil
}

func (m *memAttributeStore) RemoveScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.removeErr != nil {
		return 0, m.removeErr
	}
	removed := int64(len(m.rows[personID][scope.Key()]))
	delete(m.rows[personID], scope.Key())
	return removed, nil
}

func (m *memAttributeStore) RemoveOtherScopes(ctx context.Context, personID uuid.UUID, keep []models.IndexScope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := map[string]bool{}
	for _, scope := range keep {
		kept[scope.Key()] = true
	}

	var removed int64
	for key, attrs := range m.rows[personID] {
		if !kept[key] {
			removed += int64(len(attrs))
			delete(m.rows[personID], key)
		}
	}
	return removed, nil
}

func (m *memAttributeStore) Find(ctx context.Context, attrType models.SearchAttributeType, value string) ([]uuid.UUID, error) {
	matches, err := m.FindWithProvenance(ctx, attrType, value)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, match := range matches {
		if !seen[match.PersonID] {
			seen[match.PersonID] = true
			ids = append(ids, match.PersonID)
		}
	}
	return ids, nil
}

func (m *memAttributeStore) FindWithProvenance(ctx context.Context, attrType models.SearchAttributeType, value string) ([]models.SearchAttributeMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []models.SearchAttributeMatch
	for personID, scopes := range m.rows {
		for key, attrs := range scopes {
			for _, attr := range attrs {
				if attr.Type == attrType && strings.EqualFold(attr.Value, value) {
					matches = append(matches, models.SearchAttributeMatch{
						PersonID: personID,
						Scope:    attr.Scope,
						ScopeKey: key,
						Type:     attr.Type,
						Value:    attr.Value,
						Tags:     attr.Tags,
					})
				}
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].PersonID != matches[j].PersonID {
			return matches[i].PersonID.String() < matches[j].PersonID.String()
		}
		return matches[i].ScopeKey < matches[j].ScopeKey
	})
	return matches, nil
}

func (m *memAttributeStore) ListByPerson(ctx context.Context, personID uuid.UUID) ([]models.SearchAttribute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var attrs []models.SearchAttribute
	for _, scoped := range m.rows[personID] {
		attrs = append(attrs, scoped...)
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		if attrs[i].ScopeKey() != attrs[j].ScopeKey() {
			return attrs[i].ScopeKey() < attrs[j].ScopeKey()
		}
		if attrs[i].Type != attrs[j].Type {
			return attrs[i].Type < attrs[j].Type
		}
		return attrs[i].Value < attrs[j].Value
	})
	return attrs, nil
}

// scope returns the stored rows of one scope in insertion order.
func (m *memAttributeStore) scope(personID uuid.UUID, scope models.IndexScope) []models.SearchAttribute {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SearchAttribute(nil), m.rows[personID][scope.Key()]...)
}

// scopeKeys returns the person's scope keys that own rows, sorted.
func (m *memAttributeStore) scopeKeys(personID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for key, attrs := range m.rows[personID] {
		if len(attrs) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *memAttributeStore) removePerson(personID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, personID)
}

func (m *memAttributeStore) replaceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}

// ============================================================================
// Source repositories
// ============================================================================

type mockPersonRepository struct {
	mu       sync.Mutex
	persons  map[uuid.UUID]*models.Person
	hooks    []repositories.PersonHook
	onDelete func(personID uuid.UUID)
}

func newMockPersonRepo() *mockPersonRepository {
	return &mockPersonRepository{persons: map[uuid.UUID]*models.Person{}}
}

var _ repositories.PersonRepository = (*mockPersonRepository)(nil)

func (m *mockPersonRepository) AddHook(hook repositories.PersonHook) {
	m.hooks = append(m.hooks, hook)
}

func (m *mockPersonRepository) notify(ctx context.Context, change repositories.PersonChange) error {
	for _, hook := range m.hooks {
		if err := hook.OnPersonChanged(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockPersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.PersonID == uuid.Nil {
		person.PersonID = uuid.New()
	}
	if person.Status == "" {
		person.Status = models.PersonStatusActive
	}
	after := *person

	m.mu.Lock()
	m.persons[person.PersonID] = &after
	m.mu.Unlock()

	return m.notify(ctx, repositories.PersonChange{After: &after})
}

func (m *mockPersonRepository) Update(ctx context.Context, person *models.Person) error {
	m.mu.Lock()
	stored, ok := m.persons[person.PersonID]
	if !ok {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	before := *stored
	after := *person
	after.Status = before.Status
	m.persons[person.PersonID] = &after
	m.mu.Unlock()

	person.Status = after.Status
	return m.notify(ctx, repositories.PersonChange{Before: &before, After: &after})
}

func (m *mockPersonRepository) Deactivate(ctx context.Context, personID uuid.UUID) error {
	return m.setStatus(ctx, personID, models.PersonStatusDeactivated)
}

func (m *mockPersonRepository) Reactivate(ctx context.Context, personID uuid.UUID) error {
	return m.setStatus(ctx, personID, models.PersonStatusActive)
}

func (m *mockPersonRepository) setStatus(ctx context.Context, personID uuid.UUID, status models.PersonStatus) error {
	m.mu.Lock()
	stored, ok := m.persons[personID]
	if !ok {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	if stored.Status == status {
		m.mu.Unlock()
		return nil
	}
	before := *stored
	after := *stored
	after.Status = status
	m.persons[personID] = &after
	m.mu.Unlock()

	return m.notify(ctx, repositories.PersonChange{Before: &before, After: &after})
}

func (m *mockPersonRepository) Delete(ctx context.Context, personID uuid.UUID) error {
	m.mu.Lock()
	stored, ok := m.persons[personID]
	if !ok {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	before := *stored
	delete(m.persons, personID)
	m.mu.Unlock()

	if m.onDelete != nil {
		m.onDelete(personID)
	}
	return m.notify(ctx, repositories.PersonChange{Before: &before})
}

func (m *mockPersonRepository) GetByID(ctx context.Context, personID uuid.UUID) (*models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.persons[personID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	p := *stored
	return &p, nil
}

func (m *mockPersonRepository) GetForShare(ctx context.Context, personID uuid.UUID) (*models.Person, error) {
	return m.GetByID(ctx, personID)
}

func (m *mockPersonRepository) GetForUpdate(ctx context.Context, personID uuid.UUID) (*models.Person, error) {
	return m.GetByID(ctx, personID)
}

func (m *mockPersonRepository) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for id := range m.persons {
		if id.String() > after.String() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type mockPreviousNameRepository struct {
	mu    sync.Mutex
	names []*models.PreviousName
	hooks []repositories.PreviousNameHook
}

func newMockPreviousNameRepo() *mockPreviousNameRepository {
	return &mockPreviousNameRepository{}
}

var _ repositories.PreviousNameRepository = (*mockPreviousNameRepository)(nil)

func (m *mockPreviousNameRepository) AddHook(hook repositories.PreviousNameHook) {
	m.hooks = append(m.hooks, hook)
}

func (m *mockPreviousNameRepository) notify(ctx context.Context, change repositories.PreviousNameChange) error {
	for _, hook := range m.hooks {
		if err := hook.OnPreviousNameChanged(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockPreviousNameRepository) find(id uuid.UUID) (int, *models.PreviousName) {
	for i, n := range m.names {
		if n.PreviousNameID == id {
			return i, n
		}
	}
	return -1, nil
}

func (m *mockPreviousNameRepository) Create(ctx context.Context, name *models.PreviousName) error {
	if name.PreviousNameID == uuid.Nil {
		name.PreviousNameID = uuid.New()
	}
	after := *name

	m.mu.Lock()
	m.names = append(m.names, &after)
	m.mu.Unlock()

	return m.notify(ctx, repositories.PreviousNameChange{After: &after})
}

func (m *mockPreviousNameRepository) Update(ctx context.Context, name *models.PreviousName) error {
	m.mu.Lock()
	i, stored := m.find(name.PreviousNameID)
	if stored == nil || stored.IsDeleted() {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	before := *stored
	after := *name
	after.PersonID = before.PersonID
	m.names[i] = &after
	m.mu.Unlock()

	return m.notify(ctx, repositories.PreviousNameChange{Before: &before, After: &after})
}

func (m *mockPreviousNameRepository) Delete(ctx context.Context, previousNameID uuid.UUID) error {
	m.mu.Lock()
	i, stored := m.find(previousNameID)
	if stored == nil {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	if stored.IsDeleted() {
		m.mu.Unlock()
		return nil
	}
	before := *stored
	after := *stored
	now := before.CreatedOn.AddDate(0, 0, 1)
	after.DeletedOn = &now
	m.names[i] = &after
	m.mu.Unlock()

	return m.notify(ctx, repositories.PreviousNameChange{Before: &before, After: &after})
}

func (m *mockPreviousNameRepository) HardDelete(ctx context.Context, previousNameID uuid.UUID) error {
	m.mu.Lock()
	i, stored := m.find(previousNameID)
	if stored == nil {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	before := *stored
	m.names = append(m.names[:i], m.names[i+1:]...)
	m.mu.Unlock()

	return m.notify(ctx, repositories.PreviousNameChange{Before: &before})
}

func (m *mockPreviousNameRepository) GetByID(ctx context.Context, previousNameID uuid.UUID) (*models.PreviousName, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, stored := m.find(previousNameID)
	if stored == nil {
		return nil, apperrors.ErrNotFound
	}
	n := *stored
	return &n, nil
}

func (m *mockPreviousNameRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.PreviousName, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PreviousName
	for _, stored := range m.names {
		if stored.PersonID == personID && !stored.IsDeleted() {
			n := *stored
			out = append(out, &n)
		}
	}
	return out, nil
}

type mockTpsEmploymentRepository struct {
	mu          sync.Mutex
	employments []*models.TpsEmployment
	hooks       []repositories.TpsEmploymentHook
}

func newMockTpsEmploymentRepo() *mockTpsEmploymentRepository {
	return &mockTpsEmploymentRepository{}
}

var _ repositories.TpsEmploymentRepository = (*mockTpsEmploymentRepository)(nil)

func (m *mockTpsEmploymentRepository) AddHook(hook repositories.TpsEmploymentHook) {
	m.hooks = append(m.hooks, hook)
}

func (m *mockTpsEmploymentRepository) notify(ctx context.Context, change repositories.TpsEmploymentChange) error {
	for _, hook := range m.hooks {
		if err := hook.OnTpsEmploymentChanged(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockTpsEmploymentRepository) find(id uuid.UUID) (int, *models.TpsEmployment) {
	for i, e := range m.employments {
		if e.TpsEmploymentID == id {
			return i, e
		}
	}
	return -1, nil
}

func (m *mockTpsEmploymentRepository) Create(ctx context.Context, employment *models.TpsEmployment) error {
	if employment.TpsEmploymentID == uuid.Nil {
		employment.TpsEmploymentID = uuid.New()
	}
	after := *employment

	m.mu.Lock()
	m.employments = append(m.employments, &after)
	m.mu.Unlock()

	return m.notify(ctx, repositories.TpsEmploymentChange{After: &after})
}

func (m *mockTpsEmploymentRepository) Update(ctx context.Context, employment *models.TpsEmployment) error {
	m.mu.Lock()
	i, stored := m.find(employment.TpsEmploymentID)
	if stored == nil || stored.IsDeleted() {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	before := *stored
	after := *employment
	after.PersonID = before.PersonID
	m.employments[i] = &after
	m.mu.Unlock()

	return m.notify(ctx, repositories.TpsEmploymentChange{Before: &before, After: &after})
}

func (m *mockTpsEmploymentRepository) Delete(ctx context.Context, tpsEmploymentID uuid.UUID) error {
	m.mu.Lock()
	i, stored := m.find(tpsEmploymentID)
	if stored == nil {
		m.mu.Unlock()
		return apperrors.ErrNotFound
	}
	if stored.IsDeleted() {
		m.mu.Unlock()
		return nil
	}
	before := *stored
	after := *stored
	now := before.StartDate.AddDate(1, 0, 0)
	after.DeletedOn = &now
	m.employments[i] = &after
	m.mu.Unlock()

	return m.notify(ctx, repositories.TpsEmploymentChange{Before: &before, After: &after})
}

func (m *mockTpsEmploymentRepository) GetByID(ctx context.Context, tpsEmploymentID uuid.UUID) (*models.TpsEmployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, stored := m.find(tpsEmploymentID)
	if stored == nil {
		return nil, apperrors.ErrNotFound
	}
	e := *stored
	return &e, nil
}

func (m *mockTpsEmploymentRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.TpsEmployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TpsEmployment
	for _, stored := range m.employments {
		if stored.PersonID == personID && !stored.IsDeleted() {
			e := *stored
			out = append(out, &e)
		}
	}
	return out, nil
}

// ============================================================================
// Wiring
// ============================================================================

func newTestAuditor() *audit.SearchAuditor {
	return audit.NewSearchAuditor(zap.NewNop())
}

// testIndex wires the search index over in-memory fakes.
type testIndex struct {
	store         *memAttributeStore
	synonyms      *mockSynonyms
	persons       *mockPersonRepository
	previousNames *mockPreviousNameRepository
	employments   *mockTpsEmploymentRepository
	index         SearchIndexService
}

func newTestIndex(synonyms map[string][]string) *testIndex {
	ti := &testIndex{
		store:         newMemAttributeStore(),
		synonyms:      newMockSynonyms(synonyms),
		persons:       newMockPersonRepo(),
		previousNames: newMockPreviousNameRepo(),
		employments:   newMockTpsEmploymentRepo(),
	}
	ti.index = NewSearchIndexService(ti.store, ti.synonyms, newTestAuditor(), zap.NewNop())
	ti.persons.onDelete = ti.store.removePerson
	RegisterSearchIndexBindings(ti.index, ti.persons, ti.previousNames, ti.employments)
	return ti
}

func (ti *testIndex) find(attrType models.SearchAttributeType, value string) []uuid.UUID {
	ids, _ := ti.store.Find(context.Background(), attrType, value)
	return ids
}
