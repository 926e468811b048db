package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTx_Missing(t *testing.T) {
	tx, ok := GetTx(context.Background())
	assert.False(t, ok)
	assert.Nil(t, tx)
}

func TestSetTx_NilLeavesContextUnchanged(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, SetTx(ctx, nil))

	_, ok := GetTx(SetTx(ctx, nil))
	assert.False(t, ok)
}
