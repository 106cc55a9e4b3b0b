package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Commit() error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.rolledBack = true
	return nil
}

type fakeTransactor struct {
	tx       *fakeTx
	beginErr error
}

func (db fakeTransactor) BeginTx(context.Context) (Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	return db.tx, nil
}

func TestRunInTx(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("commit", func(t *testing.T) {
		tx := new(fakeTx)
		err := RunInTx(context.Background(), fakeTransactor{tx: tx}, func(Tx) error { return nil })
		assert.NoError(t, err)
		assert.True(t, tx.committed)
		assert.False(t, tx.rolledBack)
	})

	t.Run("fn error rolls back", func(t *testing.T) {
		tx := new(fakeTx)
		err := RunInTx(context.Background(), fakeTransactor{tx: tx}, func(Tx) error { return errBoom })
		assert.Equal(t, errBoom, err)
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack)
	})

	t.Run("commit error", func(t *testing.T) {
		tx := &fakeTx{commitErr: errBoom}
		err := RunInTx(context.Background(), fakeTransactor{tx: tx}, func(Tx) error { return nil })
		var pErr *PersistenceError
		if assert.ErrorAs(t, err, &pErr) {
			assert.Equal(t, "committing transaction", pErr.Op)
			assert.Equal(t, errBoom, pErr.Err)
		}
		assert.True(t, tx.rolledBack)
	})

	t.Run("begin error", func(t *testing.T) {
		called := false
		err := RunInTx(context.Background(), fakeTransactor{beginErr: errBoom}, func(Tx) error {
			called = true
			return nil
		})
		var pErr *PersistenceError
		assert.ErrorAs(t, err, &pErr)
		assert.False(t, called)
	})
}

func TestOrderingAllowList_Clean(t *testing.T) {
	al := OrderingAllowList{
		Columns: map[string]string{"title": "c.title", "created_at": "c.created_at"},
		Default: DBOrdering{Field: "c.created_at"},
	}

	tests := []struct {
		name string
		in   []DBOrdering
		want []DBOrdering
	}{
		{name: "nil", want: []DBOrdering{{Field: "c.created_at"}}},
		{
			name: "unknown only",
			in:   []DBOrdering{{Field: "password", Ascending: true}, {Field: "1; DROP TABLE users"}},
			want: []DBOrdering{{Field: "c.created_at"}},
		},
		{
			name: "mapped and filtered",
			in:   []DBOrdering{{Field: "Title", Ascending: true}, {Field: "nope"}, {Field: "created_at"}},
			want: []DBOrdering{{Field: "c.title", Ascending: true}, {Field: "c.created_at"}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, al.Clean(tt.in))
		})
	}

	assert.Equal(t, "c.title ASC", DBOrdering{Field: "c.title", Ascending: true}.String())
	assert.Equal(t, "c.title DESC", DBOrdering{Field: "c.title"}.String())
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Alice", CleanString("  Alice\n"))
	assert.Equal(t, "alice@example.com", CleanString(" Alice@Example.com ", true))
	assert.Nil(t, CleanStringPtr(nil))
	s := "  Bob "
	assert.Equal(t, "bob", *CleanStringPtr(&s, true))
}
