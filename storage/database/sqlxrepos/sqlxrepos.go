// Package sqlxrepos implements the repositories on PostgreSQL with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type base struct {
	db sqlx.ExtContext
}

// getExec returns the transaction when one is given, the pool otherwise.
func (b base) getExec(tx []core.Tx) sqlx.ExtContext {
	if len(tx) > 0 && tx[0] != nil {
		if ext, ok := tx[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return b.db
}

func (b base) get(ctx context.Context, tx []core.Tx, dest interface{}, query sq.Sqlizer) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, b.getExec(tx), dest, stmt, args...)
}

func (b base) sel(ctx context.Context, tx []core.Tx, dest interface{}, query sq.Sqlizer) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, b.getExec(tx), dest, stmt, args...)
}

// exec runs query and returns the number of affected rows.
func (b base) exec(ctx context.Context, tx []core.Tx, query sq.Sqlizer) (int64, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := b.getExec(tx).ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// orderBy renders allow-listed orderings, qualified by the table alias when one is given.
func orderBy(alias string, ordering []core.DBOrdering) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if alias != "" {
			ord.Field = alias + "." + ord.Field
		}
		clauses = append(clauses, ord.String())
	}
	return clauses
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// isUniqueViolation reports a unique violation, on the given constraint when one is named.
func isUniqueViolation(err error, constraint ...string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != uniqueViolation {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint[0]
}
