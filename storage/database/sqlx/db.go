// Package sqlxrepos implements the repositories on PostgreSQL through sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tutora/backend/core"
)

// trapNoRowsErr maps psql "no rows" err to the domain's notFound err.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func nullString(s string) null.String { return null.NewString(s, s != "") }

// where accumulates AND-ed conditions written with `?` bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// inIDs adds "col IN (...)" for a UUID column; an empty list, or one without valid UUIDs, matches nothing.
func (w *where) inIDs(col string, ids []string) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		w.conds = append(w.conds, "FALSE")
		return
	}
	w.add(col+" = ANY(?::uuid[])", pq.Array(ids))
}

// eqID adds "col = id" for a UUID column; an invalid UUID matches nothing.
func (w *where) eqID(col, id string) {
	if _, err := uuid.Parse(id); err != nil {
		w.conds = append(w.conds, "FALSE")
		return
	}
	w.add(col+" = ?", id)
}

func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// selectQuery runs "base WHERE ... ORDER BY ..." and scans into dest.
func selectQuery(ctx context.Context, db sqlx.QueryerContext, dest interface{}, base string, w *where, orderBy string) error {
	q := base + w.String()
	if orderBy != "" {
		q += " ORDER BY " + orderBy
	}
	return sqlx.SelectContext(ctx, db, dest, sqlx.Rebind(sqlx.DOLLAR, q), w.args...)
}

// orderBy renders the whitelisted orderings with a table alias prefix.
// Rows with equal keys are ordered by ID.
func orderBy(alias string, ordering []core.DBOrdering, def string) string {
	clause := def
	if len(ordering) > 0 {
		prefixed := make([]core.DBOrdering, 0, len(ordering))
		for _, ord := range ordering {
			prefixed = append(prefixed, core.DBOrdering{Field: alias + "." + ord.Field, Ascending: ord.Ascending})
		}
		clause = core.OrderByClause(prefixed, def)
	}
	return clause + ", " + alias + ".id"
}

// withTx runs fn in a transaction, rolled back when fn fails.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
