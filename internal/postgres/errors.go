package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rpggio/fieldlog/internal/repository"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translateError maps constraint failures onto repository errors.
func translateError(err error) error {
	switch pgCode(err) {
	case codeUniqueViolation:
		return repository.ErrConflict
	case codeForeignKeyViolation:
		return repository.ErrForeignKeyViolation
	}
	return err
}
