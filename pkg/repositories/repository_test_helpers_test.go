//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trs-platform/person-search/pkg/database"
	"github.com/trs-platform/person-search/pkg/models"
	"github.com/trs-platform/person-search/pkg/testhelpers"
)

// repoTestContext holds test dependencies for repository integration tests.
type repoTestContext struct {
	t             *testing.T
	testDB        *testhelpers.TestDB
	persons       PersonRepository
	previousNames PreviousNameRepository
	employments   TpsEmploymentRepository
	synonyms      NameSynonymsRepository
	attrs         SearchAttributeRepository
}

// setupRepoTest returns repositories over a freshly cleaned shared database.
func setupRepoTest(t *testing.T) *repoTestContext {
	testDB := testhelpers.GetTestDB(t)
	testDB.CleanTables(t)
	return &repoTestContext{
		t:             t,
		testDB:        testDB,
		persons:       NewPersonRepository(),
		previousNames: NewPreviousNameRepository(),
		employments:   NewTpsEmploymentRepository(),
		synonyms:      NewNameSynonymsRepository(),
		attrs:         NewSearchAttributeRepository(),
	}
}

// inTx runs fn in a committed read-write transaction and fails the test on error.
func (tc *repoTestContext) inTx(fn func(ctx context.Context) error) {
	tc.t.Helper()
	require.NoError(tc.t, tc.testDB.DB.RunInTx(context.Background(), database.ReadWrite, fn))
}

// createPerson inserts an active person.
func (tc *repoTestContext) createPerson(first, last string) *models.Person {
	tc.t.Helper()
	p := &models.Person{FirstName: first, LastName: last}
	tc.inTx(func(ctx context.Context) error {
		return tc.persons.Create(ctx, p)
	})
	return p
}

// recordingPersonHook captures every person change it observes.
type recordingPersonHook struct {
	changes []PersonChange
	err     error
}

func (h *recordingPersonHook) OnPersonChanged(ctx context.Context, change PersonChange) error {
	h.changes = append(h.changes, change)
	return h.err
}
