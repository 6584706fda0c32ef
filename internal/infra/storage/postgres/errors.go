package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes handled explicitly.
const (
	codeUniqueViolation   = "23505"
	codeInvalidText       = "22P02"
	codeUndefinedTable    = "42P01"
	codeQueryCanceled     = "57014"
	codeTooManyConnection = "53300"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotMigrated   = errors.New("schema not migrated")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnavailable   = errors.New("database unavailable")
)

// MapPgError translates Postgres error codes to package errors. The original
// error stays in the chain. Anything unmapped passes through.
func MapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return errors.Join(ErrAlreadyExists, err)
	case codeInvalidText:
		return errors.Join(ErrInvalidInput, err)
	case codeUndefinedTable:
		return errors.Join(ErrNotMigrated, err)
	case codeQueryCanceled, codeTooManyConnection:
		return errors.Join(ErrUnavailable, err)
	}
	return err
}
