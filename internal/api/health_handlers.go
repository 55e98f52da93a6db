package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

func (s *Server) registerHealthRoutes() {
	register(s, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports whether the storage backend is reachable",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status  string `json:"status" doc:"healthy"`
	Storage string `json:"storage" doc:"Storage ping latency"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{Status: "healthy"}
	if s.opts.Store == nil {
		return &HealthOutput{Body: resp}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.opts.Store.Ping(ctx); err != nil {
		return nil, domainerrors.Storage(err)
	}
	resp.Storage = time.Since(start).String()
	return &HealthOutput{Body: resp}, nil
}
