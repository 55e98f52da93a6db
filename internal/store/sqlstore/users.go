package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

const tableUsers = "users"

type userRow struct {
	Email        string `db:"email"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	StudentID    string `db:"sid"`
	Introduction string `db:"introduction"`
	Age          int    `db:"age"`
	Sex          string `db:"sex"`
	Avatar       string `db:"avatar"`
	Role         string `db:"role"`
	Status       string `db:"status"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

var userColumns = []any{
	"email", "username", "password_hash", "sid", "introduction", "age",
	"sex", "avatar", "role", "status", "created_at", "updated_at",
}

func (r *userRow) toDomain() (*domain.User, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of user %s: %w", r.Email, err)
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at of user %s: %w", r.Email, err)
	}
	return &domain.User{
		Email:        domain.Email(r.Email),
		Username:     domain.Username(r.Username),
		PasswordHash: r.PasswordHash,
		StudentID:    domain.StudentID(r.StudentID),
		Introduction: domain.Introduction(r.Introduction),
		Age:          domain.Age(r.Age),
		Sex:          domain.Sex(r.Sex),
		Avatar:       r.Avatar,
		Role:         domain.Role(r.Role),
		Status:       domain.UserStatus(r.Status),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func userRecord(u *domain.User) goqu.Record {
	return goqu.Record{
		"email":         string(u.Email),
		"username":      string(u.Username),
		"password_hash": u.PasswordHash,
		"sid":           string(u.StudentID),
		"introduction":  string(u.Introduction),
		"age":           int(u.Age),
		"sex":           string(u.Sex),
		"avatar":        u.Avatar,
		"role":          string(u.Role),
		"status":        string(u.Status),
		"created_at":    formatTime(u.CreatedAt),
		"updated_at":    formatTime(u.UpdatedAt),
	}
}

// CreateUser implements store.UserStore.
func (t *tx) CreateUser(ctx context.Context, user *domain.User) error {
	ds := t.dialect.Insert(tableUsers).Prepared(true).Rows(userRecord(user))
	if _, err := t.exec(ctx, ds); err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessagef("user %s already exists", user.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser implements store.UserStore.
func (t *tx) GetUser(ctx context.Context, email domain.Email) (*domain.User, error) {
	ds := t.dialect.From(tableUsers).Prepared(true).
		Select(userColumns...).
		Where(goqu.C("email").Eq(string(email)))

	var row userRow
	err := t.selectOne(ctx, &row, ds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessagef("user %s not found", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain()
}

// UpdateUser implements store.UserStore.
func (t *tx) UpdateUser(ctx context.Context, user *domain.User) error {
	rec := userRecord(user)
	delete(rec, "email")
	delete(rec, "created_at")

	ds := t.dialect.Update(tableUsers).Prepared(true).
		Set(rec).
		Where(goqu.C("email").Eq(string(user.Email)))

	n, err := t.exec(ctx, ds)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessagef("user %s not found", user.Email)
	}
	return nil
}

// ListUsers implements store.UserStore.
func (t *tx) ListUsers(ctx context.Context) ([]*domain.User, error) {
	ds := t.dialect.From(tableUsers).Prepared(true).
		Select(userColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("email").Asc())

	var rows []userRow
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}
