package entity

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrPosItemIDNotFound marks a webhook item without a pos_item_id. The webhook
// answers it with the reason string itself.
var ErrPosItemIDNotFound = errors.New("pos_item_id_not_found")

// StorageError wraps any staging, merge or cleanup failure of the upsert engine.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MalformedPayloadError means a required field is missing or cannot be parsed.
// It aborts the current order only.
type MalformedPayloadError struct {
	OrderID string
	Field   string
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("malformed payload: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("malformed payload for order %s: %s: %v", e.OrderID, e.Field, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

type UnknownPartnerError struct {
	Name string
}

func (e *UnknownPartnerError) Error() string {
	return fmt.Sprintf("partner %q does not exist in the database", e.Name)
}

// IsPermanent reports whether retrying the same payload can never succeed.
// Integrity constraint violations (SQLSTATE class 23, e.g. an unknown
// location_id hitting the partner foreign key) count as permanent.
func IsPermanent(err error) bool {
	var mp *MalformedPayloadError
	var up *UnknownPartnerError
	if errors.As(err, &mp) || errors.As(err, &up) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
}
