package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/i18n"
)

var discard = slog.New(slog.DiscardHandler)

func TestEnvelopeTransformer_Success(t *testing.T) {
	data := map[string]string{"isbn": hobbit}

	out, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)
	assert.Equal(t, &Envelope{Code: domainerrors.CodeSuccess, Data: data}, out)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":20000,"data":{"isbn":"9780261103344"}}`, string(raw))
}

func TestEnvelopeTransformer_Empty(t *testing.T) {
	out, err := EnvelopeTransformer(nil, "200", Empty{})
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":20000}`, string(raw))
}

func TestEnvelopeTransformer_ErrorPassesThrough(t *testing.T) {
	apiErr := &APIError{status: http.StatusConflict, Code: domainerrors.CodeNoRemain, Message: "no remaining copies"}

	out, err := EnvelopeTransformer(nil, "409", apiErr)
	require.NoError(t, err)
	assert.Same(t, apiErr, out)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":140000,"message":"no remaining copies"}`, string(raw))
}

func TestNewAPIError_DomainError(t *testing.T) {
	ctx := i18n.WithLanguage(context.Background(), i18n.Negotiate("zh"))
	err := domainerrors.ErrBookNotFound.WithDetails(map[string]string{"isbn": hobbit})

	apiErr := newAPIError(ctx, discard, http.StatusInternalServerError, "unexpected", err)
	assert.Equal(t, http.StatusNotFound, apiErr.GetStatus())
	assert.Equal(t, domainerrors.CodeBookNotFound, apiErr.Code)
	assert.Equal(t, "书籍不存在", apiErr.Message)
	assert.Equal(t, map[string]string{"isbn": hobbit}, apiErr.Details)
}

func TestNewAPIError_WrappedDomainError(t *testing.T) {
	err := errors.Join(errors.New("context"), domainerrors.ErrStockTooLow)

	apiErr := newAPIError(context.Background(), discard, http.StatusInternalServerError, "unexpected", err)
	assert.Equal(t, domainerrors.CodeStockTooLow, apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.GetStatus())
}

func TestNewAPIError_HTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		code   domainerrors.Code
	}{
		{http.StatusBadRequest, domainerrors.CodeInvalidRequest},
		{http.StatusUnprocessableEntity, domainerrors.CodeInvalidData},
		{http.StatusUnauthorized, domainerrors.CodeInvalidToken},
		{http.StatusTooManyRequests, domainerrors.CodeRateLimited},
		{http.StatusInternalServerError, domainerrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			apiErr := newAPIError(context.Background(), discard, tt.status, "raw", errors.New("detail"))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.code.HTTPStatus(), apiErr.GetStatus())
			assert.Equal(t, []string{"detail"}, apiErr.Details)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post(BasePath+"/user/login", "Content-Type: application/json", strings.NewReader(`{"email": `))
	env := decode(t, resp)
	assert.NotEqual(t, domainerrors.CodeSuccess, env.Code)
	assert.GreaterOrEqual(t, resp.Code, http.StatusBadRequest)
	assert.Less(t, resp.Code, http.StatusInternalServerError)
}
