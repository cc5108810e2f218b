package sqlxrepos

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const uniqueViolation = "23505"

// isUniqueViolation tells whether `err` violates the `constraint` unique constraint.
func isUniqueViolation(err error, constraint string) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
	}
	return false
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// nullString maps "" to NULL, for nullable columns only.
func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func nullUUID(id string) null.String {
	return null.NewString(id, isUUID(id))
}

// timePtr returns the UTC time as a pointer, nil when not set.
func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	tm := t.Time.UTC()
	return &tm
}
