package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/service"
)

func (s *Server) registerAdminRoutes() {
	register(s, huma.Operation{
		OperationID: "adminListUsers",
		Method:      http.MethodGet,
		Path:        BasePath + "/admin/user/list",
		Summary:     "List users",
		Tags:        []string{"Admin"},
		Security:    secured,
	}, s.handleAdminListUsers)

	register(s, huma.Operation{
		OperationID: "adminUpdateUser",
		Method:      http.MethodPost,
		Path:        BasePath + "/admin/user/update",
		Summary:     "Update user",
		Description: "Resets the password, enables or disables the account, or changes the role.",
		Tags:        []string{"Admin"},
		Security:    secured,
	}, s.handleAdminUpdateUser)

	register(s, huma.Operation{
		OperationID: "adminAddBook",
		Method:      http.MethodPost,
		Path:        BasePath + "/admin/book/add",
		Summary:     "Add book",
		Description: "Adds a title with every copy on the shelf.",
		Tags:        []string{"Admin"},
		Security:    secured,
	}, s.handleAdminAddBook)

	register(s, huma.Operation{
		OperationID: "adminDeleteBooks",
		Method:      http.MethodPost,
		Path:        BasePath + "/admin/book/delete",
		Summary:     "Delete books",
		Description: "Deletes a batch of titles with their loan history. Fails without deleting anything if an ISBN is unknown.",
		Tags:        []string{"Admin"},
		Security:    secured,
	}, s.handleAdminDeleteBooks)

	register(s, huma.Operation{
		OperationID: "adminUpdateBook",
		Method:      http.MethodPost,
		Path:        BasePath + "/admin/book/update",
		Summary:     "Update book",
		Description: "Changes metadata and stock. Copies on loan stay lent; stock may not drop below them.",
		Tags:        []string{"Admin"},
		Security:    secured,
	}, s.handleAdminUpdateBook)

	register(s, huma.Operation{
		OperationID: "adminUpdateStock",
		Method:      http.MethodPost,
		Path:        BasePath + "/admin/book/stock",
		Summary:     "Update stock",
		Description: "Sets the number of owned copies and adjusts remain by the same amount.",
		Tags:        []string{"Admin"},
		Security:    secured,
	}, s.handleAdminUpdateStock)
}

// === DTOs ===

// UserListResponse lists users.
type UserListResponse struct {
	Items []UserInfo `json:"items" doc:"Users in registration order"`
}

// UserListOutput wraps a user list for Huma.
type UserListOutput struct {
	Body UserListResponse
}

// AdminUpdateUserRequest is the request body for an admin user update.
type AdminUpdateUserRequest struct {
	Email    string  `json:"email" doc:"Account to update"`
	Password *string `json:"password,omitempty" doc:"New password"`
	Status   *string `json:"status,omitempty" doc:"enabled or disabled"`
	Role     *string `json:"role,omitempty" doc:"admin or user"`
}

// AdminUpdateUserInput wraps the admin user update for Huma.
type AdminUpdateUserInput struct {
	Body AdminUpdateUserRequest
}

// AddBookRequest is the request body for adding a title.
type AddBookRequest struct {
	ISBN   string `json:"isbn" doc:"13-digit ISBN"`
	Name   string `json:"name" doc:"Title, 1 to 50 characters"`
	Author string `json:"author,omitempty" doc:"Author, up to 20 characters"`
	Press  string `json:"press,omitempty" doc:"Publisher, up to 20 characters"`
	Stock  int    `json:"stock" doc:"Copies owned, 0 to 100"`
}

// AddBookInput wraps the add request for Huma.
type AddBookInput struct {
	Body AddBookRequest
}

// UpdateBookRequest is the request body for a book update. Omitted fields
// are left unchanged.
type UpdateBookRequest struct {
	ISBN   string  `json:"isbn" doc:"Book to update"`
	Name   *string `json:"name,omitempty" doc:"Title, 1 to 50 characters"`
	Author *string `json:"author,omitempty" doc:"Author, up to 20 characters"`
	Press  *string `json:"press,omitempty" doc:"Publisher, up to 20 characters"`
	Stock  *int    `json:"stock,omitempty" doc:"Copies owned, 0 to 100"`
}

// UpdateBookInput wraps the update request for Huma.
type UpdateBookInput struct {
	Body UpdateBookRequest
}

// UpdateStockRequest is the request body for a stock change.
type UpdateStockRequest struct {
	ISBN  string `json:"isbn" doc:"Book to restock"`
	Stock int    `json:"stock" doc:"New number of owned copies, 0 to 100"`
}

// UpdateStockInput wraps the stock change for Huma.
type UpdateStockInput struct {
	Body UpdateStockRequest
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body BookResponse
}

// === Handlers ===

func (s *Server) handleAdminListUsers(ctx context.Context, _ *struct{}) (*UserListOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	users, err := s.services.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]UserInfo, len(users))
	for i, u := range users {
		items[i] = mapUserInfo(u)
	}
	return &UserListOutput{Body: UserListResponse{Items: items}}, nil
}

func (s *Server) handleAdminUpdateUser(ctx context.Context, input *AdminUpdateUserInput) (*UserInfoOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	user, err := s.services.Users.AdminUpdateUser(ctx, service.AdminUpdateUserRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
		Status:   input.Body.Status,
		Role:     input.Body.Role,
	})
	if err != nil {
		return nil, err
	}
	return &UserInfoOutput{Body: mapUserInfo(user)}, nil
}

func (s *Server) handleAdminAddBook(ctx context.Context, input *AddBookInput) (*BookOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.AddBook(ctx, service.AddBookRequest{
		ISBN:      input.Body.ISBN,
		Name:      input.Body.Name,
		Author:    input.Body.Author,
		Publisher: input.Body.Press,
		Stock:     input.Body.Stock,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleAdminDeleteBooks(ctx context.Context, input *ISBNsInput) (*EmptyOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteBooks(ctx, input.Body.ISBNs); err != nil {
		return nil, err
	}
	return emptyOutput, nil
}

func (s *Server) handleAdminUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.UpdateBook(ctx, service.UpdateBookRequest{
		ISBN:      input.Body.ISBN,
		Name:      input.Body.Name,
		Author:    input.Body.Author,
		Publisher: input.Body.Press,
		Stock:     input.Body.Stock,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleAdminUpdateStock(ctx context.Context, input *UpdateStockInput) (*BookOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	isbn, err := domain.ParseISBN(input.Body.ISBN)
	if err != nil {
		return nil, err
	}
	stock, err := domain.ParseStock(input.Body.Stock)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Ledger.UpdateStock(ctx, isbn, stock)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBook(book)}, nil
}
