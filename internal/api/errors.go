package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/text/language"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/i18n"
)

// APIError is the enveloped form of a failed operation. It implements
// huma.StatusError so Huma writes it with the mapped HTTP status.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    domainerrors.Code `json:"code" doc:"Machine-readable error code"`
	Message string            `json:"message" doc:"Localized error message"`
	Details any               `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler makes Huma report every failure as an APIError with a
// localized message. Call it before serving requests.
func RegisterErrorHandler(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	huma.NewErrorWithContext = func(hctx huma.Context, status int, message string, errs ...error) huma.StatusError {
		ctx := context.Background()
		if hctx != nil {
			ctx = hctx.Context()
		}
		return newAPIError(ctx, logger, status, message, errs...)
	}
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		return newAPIError(context.Background(), logger, status, message, errs...)
	}
}

func newAPIError(ctx context.Context, logger *slog.Logger, status int, message string, errs ...error) *APIError {
	tag := i18n.FromContext(ctx)

	for _, err := range errs {
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			if domainErr.HTTPStatus() >= http.StatusInternalServerError {
				logger.ErrorContext(ctx, "request failed", "code", domainErr.Code, "error", err)
			}
			return &APIError{
				status:  domainErr.HTTPStatus(),
				Code:    domainErr.Code,
				Message: localize(tag, domainErr.Code, domainErr.Message),
				Details: domainErr.Details,
			}
		}
	}

	code := statusToCode(status)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error", errors.Join(errs...))
	}

	// Huma reports body and parameter problems as a list of details.
	var details []string
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}

	return &APIError{
		status:  code.HTTPStatus(),
		Code:    code,
		Message: localize(tag, code, message),
		Details: detailsOrNil(details),
	}
}

func localize(tag language.Tag, code domainerrors.Code, fallback string) string {
	if msg, ok := i18n.Message(tag, code); ok {
		return msg
	}
	return fallback
}

func detailsOrNil(details []string) any {
	if len(details) == 0 {
		return nil
	}
	return details
}

// statusToCode maps HTTP statuses raised by Huma itself to envelope codes.
func statusToCode(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return domainerrors.CodeInvalidRequest
	case http.StatusUnprocessableEntity:
		return domainerrors.CodeInvalidData
	case http.StatusUnauthorized:
		return domainerrors.CodeInvalidToken
	case http.StatusForbidden:
		return domainerrors.CodeNotAdmin
	case http.StatusTooManyRequests:
		return domainerrors.CodeRateLimited
	default:
		return domainerrors.CodeInternal
	}
}

// register adds an operation to the server's API. Errors returned by the
// handler are converted to APIError in the language of the request.
func register[I, O any](s *Server, op huma.Operation, handler func(context.Context, *I) (*O, error)) {
	huma.Register(s.api, op, func(ctx context.Context, input *I) (*O, error) {
		out, err := handler(ctx, input)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return nil, apiErr
			}
			return nil, newAPIError(ctx, s.logger, http.StatusInternalServerError, "unexpected error occurred", err)
		}
		return out, nil
	})
}
