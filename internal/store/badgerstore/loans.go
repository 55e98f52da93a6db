package badgerstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// CreateLoan implements store.LoanStore.
func (t *tx) CreateLoan(_ context.Context, loan *domain.LoanRecord) error {
	if ok, err := t.exists(bookKey(loan.ISBN)); err != nil {
		return fmt.Errorf("check book %s: %w", loan.ISBN, err)
	} else if !ok {
		return store.ErrNotFound.WithMessagef("book %s not found", loan.ISBN)
	}

	key := loanKey(loan.ID)
	if ok, err := t.exists(key); err != nil {
		return fmt.Errorf("check loan %s: %w", loan.ID, err)
	} else if ok {
		return store.ErrAlreadyExists.WithMessagef("loan %s already exists", loan.ID)
	}

	if err := t.set(key, loan); err != nil {
		return err
	}
	if err := t.txn.Set(indexKey(loanByBorrowerPrefix, string(loan.Borrower), loan.ID), nil); err != nil {
		return err
	}
	return t.txn.Set(indexKey(loanByISBNPrefix, string(loan.ISBN), loan.ID), nil)
}

// ListLoans implements store.LoanStore.
func (t *tx) ListLoans(_ context.Context, filter store.LoanFilter) ([]*domain.LoanRecord, error) {
	var ids []string
	switch {
	case filter.Borrower != "":
		ids = t.scanKeys(indexPrefix(loanByBorrowerPrefix, string(filter.Borrower)))
	case len(filter.ISBNs) > 0:
		isbns := slices.Clone(filter.ISBNs)
		slices.Sort(isbns)
		for _, isbn := range slices.Compact(isbns) {
			ids = append(ids, t.scanKeys(indexPrefix(loanByISBNPrefix, string(isbn)))...)
		}
	default:
		var loans []*domain.LoanRecord
		err := t.scanValues([]byte(loanPrefix), func(val []byte) error {
			var l domain.LoanRecord
			if err := json.Unmarshal(val, &l); err != nil {
				return err
			}
			loans = append(loans, &l)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list loans: %w", err)
		}
		sortLoans(loans)
		return loans, nil
	}

	loans := make([]*domain.LoanRecord, 0, len(ids))
	for _, id := range ids {
		var l domain.LoanRecord
		if err := t.get(loanKey(id), &l); err != nil {
			return nil, fmt.Errorf("load loan %s: %w", id, err)
		}
		if len(filter.ISBNs) > 0 && !slices.Contains(filter.ISBNs, l.ISBN) {
			continue
		}
		loans = append(loans, &l)
	}
	sortLoans(loans)
	return loans, nil
}

func sortLoans(loans []*domain.LoanRecord) {
	slices.SortFunc(loans, func(a, b *domain.LoanRecord) int {
		return cmp.Or(a.BorrowedAt.Compare(b.BorrowedAt), strings.Compare(a.ID, b.ID))
	})
}

// DeleteLoan implements store.LoanStore.
func (t *tx) DeleteLoan(_ context.Context, id string) error {
	var loan domain.LoanRecord
	err := t.get(loanKey(id), &loan)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound.WithMessagef("loan %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("load loan %s: %w", id, err)
	}
	return t.deleteLoan(&loan)
}

func (t *tx) deleteLoan(loan *domain.LoanRecord) error {
	for _, k := range [][]byte{
		loanKey(loan.ID),
		indexKey(loanByBorrowerPrefix, string(loan.Borrower), loan.ID),
		indexKey(loanByISBNPrefix, string(loan.ISBN), loan.ID),
	} {
		if err := t.txn.Delete(k); err != nil {
			return fmt.Errorf("delete loan %s: %w", loan.ID, err)
		}
	}
	return nil
}

// CountLoansByISBN implements store.LoanStore.
func (t *tx) CountLoansByISBN(_ context.Context) (map[domain.ISBN]int, error) {
	counts := make(map[domain.ISBN]int)
	for _, suffix := range t.scanKeys([]byte(loanByISBNPrefix)) {
		isbn, _, ok := strings.Cut(suffix, ":")
		if !ok {
			return nil, fmt.Errorf("malformed loan index key %q", suffix)
		}
		counts[domain.ISBN(isbn)]++
	}
	return counts, nil
}

// CreateReturn implements store.LoanStore.
func (t *tx) CreateReturn(_ context.Context, rec *domain.ReturnRecord) error {
	key := returnKey(rec.ID)
	if ok, err := t.exists(key); err != nil {
		return fmt.Errorf("check return %s: %w", rec.ID, err)
	} else if ok {
		return store.ErrAlreadyExists.WithMessagef("return %s already exists", rec.ID)
	}

	if err := t.set(key, rec); err != nil {
		return err
	}
	if err := t.txn.Set(indexKey(returnByBorrowerPrefix, string(rec.Borrower), rec.ID), nil); err != nil {
		return err
	}
	return t.txn.Set(indexKey(returnByISBNPrefix, string(rec.ISBN), rec.ID), nil)
}

// ListReturns implements store.LoanStore.
func (t *tx) ListReturns(_ context.Context, filter store.ReturnFilter) ([]*domain.ReturnRecord, error) {
	var ids []string
	switch {
	case filter.Borrower != "":
		ids = t.scanKeys(indexPrefix(returnByBorrowerPrefix, string(filter.Borrower)))
	case filter.ISBN != "":
		ids = t.scanKeys(indexPrefix(returnByISBNPrefix, string(filter.ISBN)))
	default:
		var recs []*domain.ReturnRecord
		err := t.scanValues([]byte(returnPrefix), func(val []byte) error {
			var r domain.ReturnRecord
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			recs = append(recs, &r)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list returns: %w", err)
		}
		sortReturns(recs)
		return recs, nil
	}

	recs := make([]*domain.ReturnRecord, 0, len(ids))
	for _, id := range ids {
		var r domain.ReturnRecord
		if err := t.get(returnKey(id), &r); err != nil {
			return nil, fmt.Errorf("load return %s: %w", id, err)
		}
		if filter.ISBN != "" && r.ISBN != filter.ISBN {
			continue
		}
		recs = append(recs, &r)
	}
	sortReturns(recs)
	return recs, nil
}

func sortReturns(recs []*domain.ReturnRecord) {
	slices.SortFunc(recs, func(a, b *domain.ReturnRecord) int {
		return cmp.Or(a.ReturnedAt.Compare(b.ReturnedAt), strings.Compare(a.ID, b.ID))
	})
}
