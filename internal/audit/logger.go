// Package audit appends immutable credit-movement records.
// Entries can only be appended through an open ledger write set, so they commit or
// roll back together with the credits they describe.
package audit

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// ErrInvalidEntry is returned when an entry is missing required fields.
var ErrInvalidEntry = errors.New("invalid audit entry")

// Logger stages audit log entries.
type Logger struct {
	newID func() string
}

// NewLogger creates a Logger that assigns UUIDv4 identifiers.
func NewLogger() *Logger {
	return &Logger{newID: uuid.NewString}
}

// NewLoggerWithIDs creates a Logger with a custom ID source.
// This is primarily used for testing.
func NewLoggerWithIDs(newID func() string) *Logger {
	return &Logger{newID: newID}
}

// Append validates entry and stages it on w. The entry's ID is assigned here and
// its timestamp by the store at commit.
func (l *Logger) Append(w *ledger.WriteSet, entry model.AuditLogEntry) error {
	if !entry.Category.Valid() {
		return fmt.Errorf("category %q: %w", entry.Category, ErrInvalidEntry)
	}
	if entry.BeneficiaryID == "" || entry.RedemptionID == "" {
		return fmt.Errorf("missing beneficiary or redemption: %w", ErrInvalidEntry)
	}
	if entry.Amount <= 0 {
		return fmt.Errorf("amount %d: %w", entry.Amount, ErrInvalidEntry)
	}
	entry.ID = l.newID()
	w.AppendAudit(entry)
	return nil
}
