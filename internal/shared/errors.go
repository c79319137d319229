package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates a referenced plan or distribution does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates missing dates, bad configuration or empty results.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage indicates the datastore call itself failed.
	ErrStorage = errors.New("storage failure")
	// ErrPartialConsistency indicates a multi-step mutation stopped half way.
	ErrPartialConsistency = errors.New("partial consistency")
)

// StorageError wraps a datastore error into the taxonomy. pgx.ErrNoRows maps
// to ErrNotFound; constraint violations keep their constraint name.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.ConstraintName != "" {
			return fmt.Errorf("%s: %w: %s (%s)", op, ErrStorage, pgErr.Message, pgErr.ConstraintName)
		}
		return fmt.Errorf("%s: %w: %s", op, ErrStorage, pgErr.Message)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}
