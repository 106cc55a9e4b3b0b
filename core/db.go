package core

import (
	"context"
	"strings"
)

type (
	// Tx is an open database transaction.
	// Repositories accept it as their optional trailing argument and run against it when given.
	Tx interface {
		Commit() error
		Rollback() error
	}

	// Transactor opens transactions.
	Transactor interface {
		BeginTx(ctx context.Context) (Tx, error)
	}
)

// RunInTx runs fn inside a transaction, committing on success and rolling back on any error.
// Errors from beginning or committing the transaction are reported as *PersistenceError.
func RunInTx(ctx context.Context, db Transactor, fn func(tx Tx) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return NewPersistenceError("beginning transaction", err)
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		_ = tx.Rollback()
		return NewPersistenceError("committing transaction", err)
	}
	return nil
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingAllowList maps public sort keys to the SQL columns they are allowed to order by.
type OrderingAllowList struct {
	Columns map[string]string
	Default DBOrdering
}

// Clean drops every ordering whose field is not allow-listed and rewrites the rest to their column.
// The default ordering is returned when nothing survives.
func (al OrderingAllowList) Clean(orderings []DBOrdering) []DBOrdering {
	cleaned := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := al.Columns[strings.ToLower(ord.Field)]
		if !ok {
			continue
		}
		cleaned = append(cleaned, DBOrdering{Field: col, Ascending: ord.Ascending})
	}
	if len(cleaned) == 0 {
		return []DBOrdering{al.Default}
	}
	return cleaned
}
