package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	t.Run("nil tx leaves context untouched", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, ctx, WithTx(ctx, nil))
		_, ok := From(ctx)
		assert.False(t, ok)
	})

	t.Run("stored tx is returned", func(t *testing.T) {
		tx := &sql.Tx{}
		got, ok := From(WithTx(context.Background(), tx))
		assert.True(t, ok)
		assert.Same(t, tx, got)
	})

	t.Run("pick prefers the context tx", func(t *testing.T) {
		tx := &sql.Tx{}
		db := &sql.DB{}
		assert.Same(t, tx, Pick(WithTx(context.Background(), tx), db))
		assert.Same(t, db, Pick(context.Background(), db))
	})
}
