package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// isUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// where accumulates AND-ed conditions with positional $n arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

// addSearch matches any of cols with ILIKE against a single argument.
func (w *where) addSearch(term string, cols ...string) {
	w.args = append(w.args, "%"+term+"%")
	n := len(w.args)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", c, n)
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the full arg list.
func (w *where) page(limit, offset int) (string, []interface{}) {
	n := len(w.args)
	args := append(append([]interface{}{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}
