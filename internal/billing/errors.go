package billing

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing order input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an order line that references a tile which does not exist.
type NotFoundError struct {
	TileID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tile %d not found", e.TileID)
}

// InsufficientStockError reports an order line asking for more units than are on hand.
type InsufficientStockError struct {
	TileID    int64
	TileName  string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available, %d requested", e.TileName, e.Available, e.Requested)
}

// PartialCommitError means the bill was written but inventory was not fully deducted.
// Operators have to reconcile stock for the bill by hand.
type PartialCommitError struct {
	BillID     int64
	BillNumber string
	Err        error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("bill %s created but inventory update failed: %v", e.BillNumber, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// StorageError wraps persistence failures unrelated to business rules.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsValidation helps callers distinguish between input and infrastructure failures.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsInsufficientStock(err error) bool {
	var is *InsufficientStockError
	return errors.As(err, &is)
}
