package domain

import "time"

// LoanRecord is an active loan: one copy of a book held by one borrower.
// BookName is a snapshot taken when the copy was lent.
type LoanRecord struct {
	ID         string    `json:"id"`
	ISBN       ISBN      `json:"isbn"`
	Borrower   Email     `json:"borrower"`
	BookName   BookName  `json:"book_name"`
	BorrowedAt time.Time `json:"borrowed_at"`
}

// ReturnRecord is a completed loan.
type ReturnRecord struct {
	ID         string    `json:"id"`
	ISBN       ISBN      `json:"isbn"`
	Borrower   Email     `json:"borrower"`
	BookName   BookName  `json:"book_name"`
	BorrowedAt time.Time `json:"borrowed_at"`
	ReturnedAt time.Time `json:"returned_at"`
}

// Complete turns an active loan into a completed one stamped at returnedAt.
// The record keeps the loan's ID so history can be traced back to it.
func (l *LoanRecord) Complete(returnedAt time.Time) *ReturnRecord {
	return &ReturnRecord{
		ID:         l.ID,
		ISBN:       l.ISBN,
		Borrower:   l.Borrower,
		BookName:   l.BookName,
		BorrowedAt: l.BorrowedAt,
		ReturnedAt: returnedAt,
	}
}
