package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/domain/progress"
)

var (
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("progress validation")
	// ErrConflict indicates a unique-key race between concurrent writers.
	ErrConflict = errors.New("progress conflict")
	// ErrRetryable indicates a transient storage failure.
	ErrRetryable = errors.New("progress retryable")
)

func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

func RetryableError(msg string) error {
	return errors.Join(ErrRetryable, errors.New(strings.TrimSpace(msg)))
}

// MapError maps infrastructure failures into progress error codes. Errors that already
// carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pErr *progress.Error
	if errors.As(err, &pErr) {
		return err
	}
	var syncErr *progress.PartialSyncError
	if errors.As(err, &syncErr) {
		return err
	}
	switch {
	case errors.Is(err, ErrValidation):
		return progress.Wrap(progress.CodeValidation, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return progress.Wrap(progress.CodeNotFound, op, err)
	}
	return progress.StorageError(op, err)
}

// IsConflict reports a unique-key violation on postgres or sqlite.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "23505" // unique_violation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint failed")
}

// IsRetryable reports a transient failure worth re-running the transaction for.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRetryable) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "40001", "40P01", "55P03": // serialization/deadlock/lock_not_available
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "could not serialize")
}
