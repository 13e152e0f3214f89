package sqlbackend

import (
	"database/sql"
	"strings"
)

// Dialect captures the differences between the supported SQL databases. Queries are written with `?`
// placeholders and rebound for the dialect.
type Dialect struct {
	// Name is reported as backend tag with metrics
	Name string

	// Placeholder returns the bind parameter for the n-th argument, starting at 1. Nil keeps `?`.
	Placeholder func(n int) string

	// LockClause is appended to queries selecting a task row to lock
	LockClause string

	// TxOptions are used for every transaction
	TxOptions *sql.TxOptions

	// IsUniqueViolation reports whether err was caused by a unique constraint
	IsUniqueViolation func(err error) bool
}

func (d *Dialect) rebind(query string) string {
	if d.Placeholder == nil {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 16)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(d.Placeholder(n))
			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}

func (d *Dialect) uniqueViolation(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

// placeholders returns a comma separated list of n `?` placeholders
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}

	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
