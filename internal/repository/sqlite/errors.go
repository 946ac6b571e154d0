package sqliterepo

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirinyoku/amparena/internal/repository"
	"github.com/mattn/go-sqlite3"
)

// wrapDBErr maps driver errors to repository-level errors and prefixes op.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s:%w", op, translateDBErr(err))
}

func translateDBErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			// "UNIQUE constraint failed: tickets.code"
			msg := se.Error()
			switch {
			case strings.Contains(msg, "tickets.code"):
				return repository.ErrDuplicateCode
			case strings.Contains(msg, "tickets.payment_reference"):
				return repository.ErrDuplicatePaymentReference
			}
			return repository.ErrConflict
		}
	}

	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
