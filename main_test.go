package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trs-platform/person-search/pkg/apperrors"
	"github.com/trs-platform/person-search/pkg/models"
)

func TestParseCommand(t *testing.T) {
	personID := uuid.New()

	tests := []struct {
		name string
		args []string
		want command
	}{
		{"migrate", []string{"migrate"}, command{name: "migrate"}},
		{"reindex all", []string{"reindex"}, command{name: "reindex"}},
		{"reindex one", []string{"reindex", "-person", personID.String()}, command{name: "reindex", personID: personID}},
		{
			"find",
			[]string{"find", "firstname", "Robert"},
			command{name: "find", attrType: models.AttributeFirstName, value: "Robert"},
		},
		{
			"find with provenance",
			[]string{"find", "-provenance", "FullName", "Jane Doe"},
			command{name: "find", attrType: models.AttributeFullName, value: "Jane Doe", provenance: true},
		},
		{"synonyms import", []string{"synonyms", "import", "seed.yaml"}, command{name: "synonyms import", file: "seed.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	_, err := parseCommand(nil)
	assert.ErrorIs(t, err, errUsage)

	_, err = parseCommand([]string{"find", "MiddleName", "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAttributeType)

	for _, args := range [][]string{
		{"migrate", "now"},
		{"reindex", "-person", "not-a-uuid"},
		{"reindex", "extra"},
		{"find", "FirstName"},
		{"synonyms", "export", "x.yaml"},
		{"synonyms", "import"},
		{"serve"},
	} {
		_, err := parseCommand(args)
		assert.Error(t, err, "%v", args)
	}
}
