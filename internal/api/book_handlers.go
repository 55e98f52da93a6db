package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	register(s, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        BasePath + "/book/list",
		Summary:     "List books",
		Description: "Returns the whole catalog ordered by ISBN.",
		Tags:        []string{"Books"},
		Security:    secured,
	}, s.handleListBooks)

	register(s, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodPost,
		Path:        BasePath + "/book/search",
		Summary:     "Search books",
		Description: "Matches books by title words, ISBN digits and author; every given field must match.",
		Tags:        []string{"Books"},
		Security:    secured,
	}, s.handleSearchBooks)

	register(s, huma.Operation{
		OperationID: "borrowBooks",
		Method:      http.MethodPost,
		Path:        BasePath + "/book/borrow",
		Summary:     "Borrow books",
		Description: "Lends one copy per listed ISBN. Either every copy is lent or none is.",
		Tags:        []string{"Loans"},
		Security:    secured,
	}, s.handleBorrow)

	register(s, huma.Operation{
		OperationID: "returnBooks",
		Method:      http.MethodPost,
		Path:        BasePath + "/book/return",
		Summary:     "Return books",
		Description: "Takes back one copy per listed ISBN, closing the oldest loan first.",
		Tags:        []string{"Loans"},
		Security:    secured,
	}, s.handleReturn)

	register(s, huma.Operation{
		OperationID: "listBorrowed",
		Method:      http.MethodGet,
		Path:        BasePath + "/book/list_borrow",
		Summary:     "Active loans",
		Tags:        []string{"Loans"},
		Security:    secured,
	}, s.handleListBorrowed)

	register(s, huma.Operation{
		OperationID: "listReturned",
		Method:      http.MethodGet,
		Path:        BasePath + "/book/list_return",
		Summary:     "Completed loans",
		Tags:        []string{"Loans"},
		Security:    secured,
	}, s.handleListReturned)
}

// === DTOs ===

// BookResponse is a catalog entry in API responses.
type BookResponse struct {
	ISBN   string `json:"isbn" doc:"13-digit ISBN"`
	Name   string `json:"name" doc:"Title"`
	Author string `json:"author" doc:"Author"`
	Press  string `json:"press" doc:"Publisher"`
	Stock  int    `json:"stock" doc:"Copies owned"`
	Remain int    `json:"remain" doc:"Copies on the shelf"`
}

// BookListResponse lists books.
type BookListResponse struct {
	Items []BookResponse `json:"items" doc:"Books"`
}

// BookListOutput wraps a book list for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// SearchRequest is the request body for a book search.
type SearchRequest struct {
	Name   string `json:"name,omitempty" doc:"Title words or prefixes"`
	ISBN   string `json:"isbn,omitempty" doc:"Any run of ISBN digits"`
	Author string `json:"author,omitempty" doc:"Author words or prefixes"`
}

// SearchInput wraps the search request for Huma.
type SearchInput struct {
	Body SearchRequest
}

// ISBNsRequest names a batch of books.
type ISBNsRequest struct {
	ISBNs []string `json:"isbns" doc:"13-digit ISBNs; an ISBN listed twice counts twice"`
}

// ISBNsInput wraps an ISBN batch for Huma.
type ISBNsInput struct {
	Body ISBNsRequest
}

// LoanResponse is one active or completed loan.
type LoanResponse struct {
	Name         string     `json:"name" doc:"Title at the time of borrowing"`
	ISBN         string     `json:"isbn" doc:"13-digit ISBN"`
	BorrowedDate time.Time  `json:"borrowed_date" doc:"When the copy was lent"`
	ReturnDate   *time.Time `json:"return_date" doc:"When the copy came back; null while on loan"`
}

// LoanListResponse lists loans.
type LoanListResponse struct {
	Items []LoanResponse `json:"items" doc:"Loans, oldest first"`
}

// LoanListOutput wraps a loan list for Huma.
type LoanListOutput struct {
	Body LoanListResponse
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*BookListOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	books, err := s.services.Catalog.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: mapBooks(books)}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchInput) (*BookListOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	books, err := s.services.Catalog.Search(ctx, service.SearchRequest{
		Name:   input.Body.Name,
		ISBN:   input.Body.ISBN,
		Author: input.Body.Author,
	})
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: mapBooks(books)}, nil
}

func (s *Server) handleBorrow(ctx context.Context, input *ISBNsInput) (*EmptyOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	isbns, err := domain.ParseISBNs(input.Body.ISBNs)
	if err != nil {
		return nil, err
	}

	if _, err := s.services.Ledger.Borrow(ctx, user.Email, isbns); err != nil {
		return nil, err
	}
	return emptyOutput, nil
}

func (s *Server) handleReturn(ctx context.Context, input *ISBNsInput) (*EmptyOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	isbns, err := domain.ParseISBNs(input.Body.ISBNs)
	if err != nil {
		return nil, err
	}

	if _, err := s.services.Ledger.Return(ctx, user.Email, isbns); err != nil {
		return nil, err
	}
	return emptyOutput, nil
}

func (s *Server) handleListBorrowed(ctx context.Context, _ *struct{}) (*LoanListOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	loans, err := s.services.Ledger.ListActive(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	items := make([]LoanResponse, len(loans))
	for i, l := range loans {
		items[i] = LoanResponse{
			Name:         string(l.BookName),
			ISBN:         string(l.ISBN),
			BorrowedDate: l.BorrowedAt,
		}
	}
	return &LoanListOutput{Body: LoanListResponse{Items: items}}, nil
}

func (s *Server) handleListReturned(ctx context.Context, _ *struct{}) (*LoanListOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	records, err := s.services.Ledger.ListCompleted(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	items := make([]LoanResponse, len(records))
	for i, r := range records {
		returned := r.ReturnedAt
		items[i] = LoanResponse{
			Name:         string(r.BookName),
			ISBN:         string(r.ISBN),
			BorrowedDate: r.BorrowedAt,
			ReturnDate:   &returned,
		}
	}
	return &LoanListOutput{Body: LoanListResponse{Items: items}}, nil
}

// === Helpers ===

func mapBook(b *domain.Book) BookResponse {
	return BookResponse{
		ISBN:   string(b.ISBN),
		Name:   string(b.Name),
		Author: string(b.Author),
		Press:  string(b.Publisher),
		Stock:  b.Stock,
		Remain: b.Remain,
	}
}

func mapBooks(books []*domain.Book) BookListResponse {
	items := make([]BookResponse, len(books))
	for i, b := range books {
		items[i] = mapBook(b)
	}
	return BookListResponse{Items: items}
}
