package ledger

import (
	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

// Errors returned by the ledger. All are coded domain errors; match them
// with errors.Is.
var (
	ErrEmptyBatch      = domainerrors.ErrEmptyBookList
	ErrUserNotFound    = domainerrors.ErrUserNotFound
	ErrAccountDisabled = domainerrors.ErrAccountDisabled
	ErrBookNotFound    = domainerrors.ErrBookNotFound
	// ErrUnavailable means a requested book is missing or has fewer
	// copies on the shelf than the batch asks for.
	ErrUnavailable     = domainerrors.ErrNoRemain
	ErrAlreadyBorrowed = domainerrors.ErrAlreadyBorrowed
	ErrNotBorrowed     = domainerrors.ErrNotBorrowed
	ErrStockTooLow     = domainerrors.ErrStockTooLow
	ErrStorage         = domainerrors.ErrStorage
)

// ISBNDetails lists the ISBNs that caused a batch to fail.
type ISBNDetails struct {
	ISBNs []domain.ISBN `json:"isbns"`
}

// StockDetails explains a rejected stock change.
type StockDetails struct {
	Borrowed  int `json:"borrowed"`
	Requested int `json:"requested"`
}

// storageFailure passes coded errors through and wraps anything else as
// ErrStorage.
func storageFailure(err error) error {
	if err == nil {
		return nil
	}
	var coded *domainerrors.Error
	if domainerrors.As(err, &coded) {
		return err
	}
	return domainerrors.Storage(err)
}

// rejectReason labels a failed borrow for metrics.
func rejectReason(err error) string {
	switch domainerrors.CodeOf(err) {
	case domainerrors.CodeNoRemain:
		return "unavailable"
	case domainerrors.CodeAlreadyBorrowed:
		return "already_borrowed"
	case domainerrors.CodeUserNotFound:
		return "user_not_found"
	case domainerrors.CodeAccountDisabled:
		return "account_disabled"
	case domainerrors.CodeEmptyBookList:
		return "empty_batch"
	default:
		return "storage"
	}
}
