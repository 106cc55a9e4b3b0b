// Package inmemdb implements the repositories in memory, for tests and local runs without PostgreSQL.
//
// Writes are applied immediately; a transaction keeps an undo log that Rollback replays.
// Transactions are not isolated from each other.
package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/announcement"
	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/settings"
	"github.com/trezcool/elimu/core/user"
)

var (
	ErrTxDone       = errors.New("transaction has already been committed or rolled back")
	ErrCommitFailed = errors.New("commit failed")
)

type DB struct {
	mu             sync.RWMutex
	users          map[string]user.User
	courses        map[string]course.Course
	announcements  map[string]announcement.Announcement
	settings       map[string]settings.UserSettings
	messages       map[string]contact.Message
	failNextCommit bool
}

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{
		users:         make(map[string]user.User),
		courses:       make(map[string]course.Course),
		announcements: make(map[string]announcement.Announcement),
		settings:      make(map[string]settings.UserSettings),
		messages:      make(map[string]contact.Message),
	}
}

// Ping always succeeds.
func (db *DB) Ping(context.Context) error { return nil }

// FailNextCommit makes the next transaction fail on Commit.
func (db *DB) FailNextCommit() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failNextCommit = true
}

func (db *DB) BeginTx(context.Context) (core.Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fail := db.failNextCommit
	db.failNextCommit = false
	return &Tx{db: db, failCommit: fail}, nil
}

type Tx struct {
	db         *DB
	undo       []func()
	done       bool
	failCommit bool
}

func (tx *Tx) Commit() error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.done {
		return ErrTxDone
	}
	if tx.failCommit {
		return ErrCommitFailed
	}
	tx.done = true
	tx.undo = nil
	return nil
}

func (tx *Tx) Rollback() error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.done {
		return ErrTxDone
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.done = true
	tx.undo = nil
	return nil
}

// record registers how to revert a write done under tx. Must be called with db.mu held.
func record(tx []core.Tx, undo func()) {
	if len(tx) == 0 || tx[0] == nil {
		return
	}
	if t, ok := tx[0].(*Tx); ok && !t.done {
		t.undo = append(t.undo, undo)
	}
}

// timeKey renders a time as a sortable string.
func timeKey(ns int64) string {
	return fmt.Sprintf("%020d", ns)
}

// orderSlice sorts items by the (allow-listed) orderings, using key to read a field.
func orderSlice[T any](items []T, ordering []core.DBOrdering, key func(item T, field string) string) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := key(items[i], ord.Field), key(items[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
}
