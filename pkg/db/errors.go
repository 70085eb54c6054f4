package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// postgres (pgx or pq) or sqlite. When constraint is non-empty the violation
// must also mention it.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) && pgxErr.Code == pgUniqueViolation {
		return matchesConstraint(pgxErr.ConstraintName+" "+pgxErr.Message, constraint)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return matchesConstraint(pqErr.Constraint+" "+pqErr.Message, constraint)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return matchesConstraint(liteErr.Error(), constraint)
	}

	msg := err.Error()
	if strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed") {
		return matchesConstraint(msg, constraint)
	}
	return false
}

func matchesConstraint(text, constraint string) bool {
	if constraint == "" {
		return true
	}
	return strings.Contains(text, constraint)
}
