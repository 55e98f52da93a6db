package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	register(s, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        BasePath + "/user/register",
		Summary:     "Register",
		Description: "Creates a member account. New accounts are enabled and hold the user role.",
		Tags:        []string{"User"},
	}, s.handleRegister)

	register(s, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        BasePath + "/user/login",
		Summary:     "Login",
		Description: "Exchanges email and password for an access token. Rate limited per client IP.",
		Tags:        []string{"User"},
	}, s.handleLogin)

	register(s, huma.Operation{
		OperationID: "getUserInfo",
		Method:      http.MethodGet,
		Path:        BasePath + "/user/info",
		Summary:     "Current user",
		Tags:        []string{"User"},
		Security:    secured,
	}, s.handleGetInfo)

	register(s, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodGet,
		Path:        BasePath + "/user/logout",
		Summary:     "Logout",
		Description: "Tokens are stateless; the client discards its copy.",
		Tags:        []string{"User"},
	}, s.handleLogout)

	register(s, huma.Operation{
		OperationID: "updateProfile",
		Method:      http.MethodPost,
		Path:        BasePath + "/user/update",
		Summary:     "Update profile",
		Tags:        []string{"User"},
		Security:    secured,
	}, s.handleUpdateProfile)

	register(s, huma.Operation{
		OperationID: "changePassword",
		Method:      http.MethodPost,
		Path:        BasePath + "/user/change_password",
		Summary:     "Change password",
		Tags:        []string{"User"},
		Security:    secured,
	}, s.handleChangePassword)
}

// === DTOs ===

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Username     string `json:"username" doc:"Display name, 1 to 10 characters"`
	Password     string `json:"password" doc:"8 to 16 letters or digits, single dots allowed between them"`
	SID          string `json:"sid" doc:"12-digit student id"`
	Email        string `json:"email" doc:"Login email"`
	Introduction string `json:"introduction,omitempty" doc:"Profile blurb, up to 200 characters"`
	Age          string `json:"age" doc:"Age between 0 and 100, as a decimal string"`
	Sex          string `json:"sex,omitempty" doc:"male, female or unknown; defaults to unknown"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body RegisterRequest
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" doc:"Login email"`
	Password string `json:"password" doc:"Password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// LoginResponse carries the access token.
type LoginResponse struct {
	Token     string    `json:"token" doc:"PASETO access token, sent back in the X-Token header"`
	ExpiresAt time.Time `json:"expires_at" doc:"Token expiry"`
}

// LoginOutput wraps the login response for Huma.
type LoginOutput struct {
	Body LoginResponse
}

// UserInfo is the public profile of a user.
type UserInfo struct {
	Name         string    `json:"name" doc:"Display name"`
	Email        string    `json:"email" doc:"Login email"`
	SID          string    `json:"sid" doc:"Student id"`
	Age          int       `json:"age" doc:"Age"`
	Sex          string    `json:"sex" doc:"male, female or unknown"`
	Roles        string    `json:"roles" doc:"admin or user"`
	Status       string    `json:"status" doc:"enabled or disabled"`
	Introduction string    `json:"introduction" doc:"Profile blurb"`
	Avatar       string    `json:"avatar" doc:"Avatar URL"`
	CreatedAt    time.Time `json:"created_at" doc:"Registration time"`
}

// UserInfoOutput wraps a profile for Huma.
type UserInfoOutput struct {
	Body UserInfo
}

// UpdateProfileRequest is the request body for a profile update.
type UpdateProfileRequest struct {
	Username     string `json:"username" doc:"Display name, 1 to 10 characters"`
	SID          string `json:"sid" doc:"12-digit student id"`
	Introduction string `json:"introduction,omitempty" doc:"Profile blurb, up to 200 characters"`
	Age          string `json:"age" doc:"Age between 0 and 100, as a decimal string"`
	Sex          string `json:"sex,omitempty" doc:"male, female or unknown; defaults to unknown"`
}

// UpdateProfileInput wraps the profile update for Huma.
type UpdateProfileInput struct {
	Body UpdateProfileRequest
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" doc:"Current password"`
	NewPassword string `json:"new_password" doc:"New password"`
}

// ChangePasswordInput wraps the password change for Huma.
type ChangePasswordInput struct {
	Body ChangePasswordRequest
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*EmptyOutput, error) {
	_, err := s.services.Users.Register(ctx, service.RegisterRequest{
		Username:     input.Body.Username,
		Password:     input.Body.Password,
		SID:          input.Body.SID,
		Email:        input.Body.Email,
		Introduction: input.Body.Introduction,
		Age:          input.Body.Age,
		Sex:          input.Body.Sex,
	})
	if err != nil {
		return nil, err
	}
	return emptyOutput, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	if s.loginLimiter != nil {
		if ip := clientIP(ctx); !s.loginLimiter.Allow(ip) {
			s.logger.WarnContext(ctx, "login rate limit exceeded", "ip", ip)
			return nil, domainerrors.ErrRateLimited
		}
	}

	resp, err := s.services.Users.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &LoginOutput{Body: LoginResponse{Token: resp.Token, ExpiresAt: resp.ExpiresAt}}, nil
}

func (s *Server) handleGetInfo(ctx context.Context, _ *struct{}) (*UserInfoOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return &UserInfoOutput{Body: mapUserInfo(user)}, nil
}

func (s *Server) handleLogout(_ context.Context, _ *struct{}) (*EmptyOutput, error) {
	return emptyOutput, nil
}

func (s *Server) handleUpdateProfile(ctx context.Context, input *UpdateProfileInput) (*UserInfoOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := s.services.Users.UpdateProfile(ctx, user.Email, service.UpdateProfileRequest{
		Username:     input.Body.Username,
		SID:          input.Body.SID,
		Introduction: input.Body.Introduction,
		Age:          input.Body.Age,
		Sex:          input.Body.Sex,
	})
	if err != nil {
		return nil, err
	}
	return &UserInfoOutput{Body: mapUserInfo(updated)}, nil
}

func (s *Server) handleChangePassword(ctx context.Context, input *ChangePasswordInput) (*EmptyOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	err = s.services.Users.ChangePassword(ctx, user.Email, service.ChangePasswordRequest{
		OldPassword: input.Body.OldPassword,
		NewPassword: input.Body.NewPassword,
	})
	if err != nil {
		return nil, err
	}
	return emptyOutput, nil
}

// === Helpers ===

func mapUserInfo(u *domain.User) UserInfo {
	return UserInfo{
		Name:         string(u.Username),
		Email:        string(u.Email),
		SID:          string(u.StudentID),
		Age:          int(u.Age),
		Sex:          string(u.Sex),
		Roles:        string(u.Role),
		Status:       string(u.Status),
		Introduction: string(u.Introduction),
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt,
	}
}
