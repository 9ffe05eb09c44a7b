package sqlxrepos

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// where accumulates AND-ed conditions written with "?" bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// build rebinds the query to the driver's bind vars.
func (w *where) build(db *sqlx.DB, query string) (string, []interface{}) {
	return db.Rebind(query), w.args
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
