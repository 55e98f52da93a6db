package sqlstore

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

const (
	tableLoans   = "loans"
	tableReturns = "returns"
)

type loanRow struct {
	ID         string `db:"id"`
	ISBN       string `db:"isbn"`
	Borrower   string `db:"borrower"`
	BookName   string `db:"book_name"`
	BorrowedAt string `db:"borrowed_at"`
}

func (r *loanRow) toDomain() (*domain.LoanRecord, error) {
	borrowedAt, err := parseTime(r.BorrowedAt)
	if err != nil {
		return nil, fmt.Errorf("parse borrowed_at of loan %s: %w", r.ID, err)
	}
	return &domain.LoanRecord{
		ID:         r.ID,
		ISBN:       domain.ISBN(r.ISBN),
		Borrower:   domain.Email(r.Borrower),
		BookName:   domain.BookName(r.BookName),
		BorrowedAt: borrowedAt,
	}, nil
}

type returnRow struct {
	loanRow
	ReturnedAt string `db:"returned_at"`
}

func (r *returnRow) toDomain() (*domain.ReturnRecord, error) {
	loan, err := r.loanRow.toDomain()
	if err != nil {
		return nil, err
	}
	returnedAt, err := parseTime(r.ReturnedAt)
	if err != nil {
		return nil, fmt.Errorf("parse returned_at of return %s: %w", r.ID, err)
	}
	return loan.Complete(returnedAt), nil
}

// CreateLoan implements store.LoanStore.
func (t *tx) CreateLoan(ctx context.Context, loan *domain.LoanRecord) error {
	ds := t.dialect.Insert(tableLoans).Prepared(true).Rows(goqu.Record{
		"id":          loan.ID,
		"isbn":        string(loan.ISBN),
		"borrower":    string(loan.Borrower),
		"book_name":   string(loan.BookName),
		"borrowed_at": formatTime(loan.BorrowedAt),
	})
	if _, err := t.exec(ctx, ds); err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessagef("loan %s already exists", loan.ID)
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// ListLoans implements store.LoanStore. Inside a PostgreSQL write unit the
// selected loans are locked so two returns cannot both complete one loan.
func (t *tx) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*domain.LoanRecord, error) {
	ds := t.dialect.From(tableLoans).Prepared(true).
		Select("id", "isbn", "borrower", "book_name", "borrowed_at").
		Order(goqu.C("borrowed_at").Asc(), goqu.C("id").Asc())
	if filter.Borrower != "" {
		ds = ds.Where(goqu.C("borrower").Eq(string(filter.Borrower)))
	}
	if len(filter.ISBNs) > 0 {
		ds = ds.Where(goqu.C("isbn").In(isbnStrings(filter.ISBNs)))
	}
	if t.forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	var rows []loanRow
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	loans := make([]*domain.LoanRecord, 0, len(rows))
	for i := range rows {
		loan, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// DeleteLoan implements store.LoanStore.
func (t *tx) DeleteLoan(ctx context.Context, id string) error {
	ds := t.dialect.Delete(tableLoans).Prepared(true).Where(goqu.C("id").Eq(id))
	n, err := t.exec(ctx, ds)
	if err != nil {
		return fmt.Errorf("delete loan %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessagef("loan %s not found", id)
	}
	return nil
}

type loanCountRow struct {
	ISBN  string `db:"isbn"`
	Count int    `db:"n"`
}

// CountLoansByISBN implements store.LoanStore.
func (t *tx) CountLoansByISBN(ctx context.Context) (map[domain.ISBN]int, error) {
	ds := t.dialect.From(tableLoans).Prepared(true).
		Select(goqu.C("isbn"), goqu.COUNT("*").As("n")).
		GroupBy("isbn")

	var rows []loanCountRow
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, fmt.Errorf("count loans: %w", err)
	}

	counts := make(map[domain.ISBN]int, len(rows))
	for _, r := range rows {
		counts[domain.ISBN(r.ISBN)] = r.Count
	}
	return counts, nil
}

// CreateReturn implements store.LoanStore.
func (t *tx) CreateReturn(ctx context.Context, rec *domain.ReturnRecord) error {
	ds := t.dialect.Insert(tableReturns).Prepared(true).Rows(goqu.Record{
		"id":          rec.ID,
		"isbn":        string(rec.ISBN),
		"borrower":    string(rec.Borrower),
		"book_name":   string(rec.BookName),
		"borrowed_at": formatTime(rec.BorrowedAt),
		"returned_at": formatTime(rec.ReturnedAt),
	})
	if _, err := t.exec(ctx, ds); err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessagef("return %s already exists", rec.ID)
		}
		return fmt.Errorf("insert return: %w", err)
	}
	return nil
}

// ListReturns implements store.LoanStore.
func (t *tx) ListReturns(ctx context.Context, filter store.ReturnFilter) ([]*domain.ReturnRecord, error) {
	ds := t.dialect.From(tableReturns).Prepared(true).
		Select("id", "isbn", "borrower", "book_name", "borrowed_at", "returned_at").
		Order(goqu.C("returned_at").Asc(), goqu.C("id").Asc())
	if filter.Borrower != "" {
		ds = ds.Where(goqu.C("borrower").Eq(string(filter.Borrower)))
	}
	if filter.ISBN != "" {
		ds = ds.Where(goqu.C("isbn").Eq(string(filter.ISBN)))
	}

	var rows []returnRow
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}

	recs := make([]*domain.ReturnRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
