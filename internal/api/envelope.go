package api

import (
	"io"

	"github.com/danielgtaylor/huma/v2"
	jsoniter "github.com/json-iterator/go"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonFormat encodes and decodes request and response bodies.
var jsonFormat = huma.Format{
	Marshal: func(w io.Writer, v any) error {
		return json.NewEncoder(w).Encode(v)
	},
	Unmarshal: json.Unmarshal,
}

// Envelope is the shape of every JSON response body.
type Envelope struct {
	Code    domainerrors.Code `json:"code" doc:"20000 on success, otherwise an error code"`
	Data    any               `json:"data,omitempty" doc:"Operation result"`
	Message string            `json:"message,omitempty" doc:"Localized error message"`
	Details any               `json:"details,omitempty" doc:"Additional error details"`
}

// Empty is the body of operations that return nothing but the success code.
type Empty struct{}

// EmptyOutput wraps Empty for Huma.
type EmptyOutput struct {
	Body Empty
}

var emptyOutput = &EmptyOutput{}

// EnvelopeTransformer wraps successful response bodies in an Envelope.
// Errors are already enveloped by APIError and pass through.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError, *Envelope:
		return body, nil
	case Empty, *Empty, nil:
		return &Envelope{Code: domainerrors.CodeSuccess}, nil
	}
	if len(status) > 0 && status[0] != '2' {
		return v, nil
	}
	return &Envelope{Code: domainerrors.CodeSuccess, Data: v}, nil
}
