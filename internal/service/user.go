package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/store"
	"github.com/books-manager/books-manager-server/internal/validation"
)

// DefaultAvatar is shown for every account; uploads are not supported.
const DefaultAvatar = "https://wpimg.wallstcn.com/f778738c-e4f8-4870-b634-56703b4acafe.gif"

// UserService handles accounts: registration, login, profiles and
// administration. It also answers the ledger's borrower checks.
type UserService struct {
	store    store.Store
	tokens   *auth.TokenService
	hasher   *auth.PasswordHasher
	validate *validation.Validator
	now      func() time.Time
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	store store.Store,
	tokens *auth.TokenService,
	hasher *auth.PasswordHasher,
	validate *validation.Validator,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UserService{
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		validate: validate,
		now:      time.Now,
		logger:   logger,
	}
}

// RegisterRequest contains the data for open registration.
type RegisterRequest struct {
	Username     string `json:"username" validate:"required,min=1,max=10"`
	Password     string `json:"password" validate:"required,min=8,max=16,password_chars"`
	SID          string `json:"sid" validate:"required,sid"`
	Email        string `json:"email" validate:"required,email"`
	Introduction string `json:"introduction" validate:"max=200"`
	Age          string `json:"age" validate:"required,number"`
	Sex          string `json:"sex" validate:"omitempty,oneof=male female unknown"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"-"`
}

// UpdateProfileRequest replaces the caller's editable profile fields.
type UpdateProfileRequest struct {
	Username     string `json:"username" validate:"required,min=1,max=10"`
	SID          string `json:"sid" validate:"required,sid"`
	Introduction string `json:"introduction" validate:"max=200"`
	Age          string `json:"age" validate:"required,number"`
	Sex          string `json:"sex" validate:"omitempty,oneof=male female unknown"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=16,password_chars"`
}

// AdminUpdateUserRequest changes another account. Nil fields are left as is.
type AdminUpdateUserRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=16,password_chars"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=enabled disabled"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin user"`
}

// Register creates an enabled account with the user role.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	email, err := domain.ParseEmail(req.Email)
	if err != nil {
		return nil, err
	}
	password, err := domain.ParsePassword(req.Password)
	if err != nil {
		return nil, err
	}
	profile, err := parseProfile(req.Username, req.SID, req.Introduction, req.Age, req.Sex)
	if err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(string(password))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeRegisterFailed, "hash password")
	}

	now := s.now()
	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
		Avatar:       DefaultAvatar,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusEnabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile.apply(user)

	err = s.store.Update(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, user)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, domainerrors.ErrUserAlreadyExists
	}
	if err != nil {
		return nil, storageFailure("create user", err)
	}

	s.logger.Info("user registered", "email", user.Email)
	return user, nil
}

// Login verifies credentials and issues a token carrying email and role.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	email, err := domain.ParseEmail(req.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, email)
	if errors.Is(err, domainerrors.ErrUserNotFound) {
		// Don't leak whether email exists
		return nil, domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, req.Password) {
		return nil, domainerrors.ErrInvalidCredentials
	}
	if !user.IsEnabled() {
		return nil, domainerrors.ErrAccountDisabled
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, domainerrors.ErrTokenCreation.WithCause(err)
	}

	s.logger.Info("user logged in", "email", user.Email)
	return &LoginResponse{Token: token, ExpiresAt: claims.Expiration, User: user}, nil
}

// Authenticate resolves a token to its account. Tokens of accounts that were
// disabled or removed after issue are rejected.
func (s *UserService) Authenticate(ctx context.Context, token string) (*domain.User, *auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, domainerrors.ErrInvalidToken.WithCause(err)
	}

	user, err := s.getUser(ctx, claims.Email)
	if errors.Is(err, domainerrors.ErrUserNotFound) {
		return nil, nil, domainerrors.ErrAccountDisabled.WithCause(err)
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsEnabled() {
		return nil, nil, domainerrors.ErrAccountDisabled
	}
	return user, claims, nil
}

// Info returns the account of email.
func (s *UserService) Info(ctx context.Context, email domain.Email) (*domain.User, error) {
	return s.getUser(ctx, email)
}

// UpdateProfile replaces the caller's profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, email domain.Email, req UpdateProfileRequest) (*domain.User, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	profile, err := parseProfile(req.Username, req.SID, req.Introduction, req.Age, req.Sex)
	if err != nil {
		return nil, err
	}

	return s.modify(ctx, email, func(user *domain.User) error {
		profile.apply(user)
		return nil
	})
}

// ChangePassword replaces the caller's password after checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, email domain.Email, req ChangePasswordRequest) error {
	if err := s.validate.Validate(req); err != nil {
		return err
	}
	password, err := domain.ParsePassword(req.NewPassword)
	if err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(string(password))
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "hash password")
	}

	_, err = s.modify(ctx, email, func(user *domain.User) error {
		if !s.hasher.Verify(user.PasswordHash, req.OldPassword) {
			return domainerrors.ErrWrongPassword
		}
		user.PasswordHash = passwordHash
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("password changed", "email", email)
	return nil
}

// ListUsers returns every account, oldest first.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, storageFailure("list users", err)
	}
	return users, nil
}

// AdminUpdateUser changes the password, status or role of an account.
func (s *UserService) AdminUpdateUser(ctx context.Context, req AdminUpdateUserRequest) (*domain.User, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	email, err := domain.ParseEmail(req.Email)
	if err != nil {
		return nil, err
	}

	var (
		passwordHash string
		status       domain.UserStatus
		role         domain.Role
	)
	if req.Password != nil {
		password, err := domain.ParsePassword(*req.Password)
		if err != nil {
			return nil, err
		}
		if passwordHash, err = s.hasher.Hash(string(password)); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "hash password")
		}
	}
	if req.Status != nil {
		if status, err = domain.ParseUserStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.Role != nil {
		if role, err = domain.ParseRole(*req.Role); err != nil {
			return nil, err
		}
	}

	user, err := s.modify(ctx, email, func(user *domain.User) error {
		if passwordHash != "" {
			user.PasswordHash = passwordHash
		}
		if status != "" {
			user.Status = status
		}
		if role != "" {
			user.Role = role
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user updated by admin", "email", user.Email, "role", user.Role, "status", user.Status)
	return user, nil
}

// EnsureAdmin creates an enabled admin account with the given credentials
// unless an account with that email already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	addr, err := domain.ParseEmail(email)
	if err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := s.now()
	admin := &domain.User{
		Email:        addr,
		Username:     "admin",
		PasswordHash: passwordHash,
		Sex:          domain.SexUnknown,
		Avatar:       DefaultAvatar,
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusEnabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.Update(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, admin)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return storageFailure("create admin", err)
	}

	s.logger.Info("created default admin account", "email", addr)
	return nil
}

// Exists reports whether an account exists.
func (s *UserService) Exists(ctx context.Context, email domain.Email) (bool, error) {
	_, err := s.getUser(ctx, email)
	if errors.Is(err, domainerrors.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// IsEnabled reports whether an existing account may borrow.
func (s *UserService) IsEnabled(ctx context.Context, email domain.Email) (bool, error) {
	user, err := s.getUser(ctx, email)
	if err != nil {
		return false, err
	}
	return user.IsEnabled(), nil
}

func (s *UserService) getUser(ctx context.Context, email domain.Email) (*domain.User, error) {
	var user *domain.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, email)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, storageFailure("get user", err)
	}
	return user, nil
}

// modify applies fn to the stored account in one unit of work.
func (s *UserService) modify(ctx context.Context, email domain.Email, fn func(*domain.User) error) (*domain.User, error) {
	var user *domain.User
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if user, err = tx.GetUser(ctx, email); err != nil {
			return err
		}
		if err := fn(user); err != nil {
			return err
		}
		user.UpdatedAt = s.now()
		return tx.UpdateUser(ctx, user)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, storageFailure("update user", err)
	}
	return user, nil
}

// profile holds parsed editable profile fields.
type profile struct {
	username     domain.Username
	sid          domain.StudentID
	introduction domain.Introduction
	age          domain.Age
	sex          domain.Sex
}

func parseProfile(username, sid, introduction, age, sex string) (*profile, error) {
	var (
		p   profile
		err error
	)
	if p.username, err = domain.ParseUsername(username); err != nil {
		return nil, err
	}
	if p.sid, err = domain.ParseStudentID(sid); err != nil {
		return nil, err
	}
	if p.introduction, err = domain.ParseIntroduction(introduction); err != nil {
		return nil, err
	}
	if p.age, err = domain.ParseAge(age); err != nil {
		return nil, err
	}
	if p.sex, err = domain.ParseSex(sex); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *profile) apply(u *domain.User) {
	u.Username = p.username
	u.StudentID = p.sid
	u.Introduction = p.introduction
	u.Age = p.age
	u.Sex = p.sex
}

// storageFailure passes domain errors through and reports anything else as
// a storage error.
func storageFailure(op string, err error) error {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return domainerrors.Storage(fmt.Errorf("%s: %w", op, err))
}
