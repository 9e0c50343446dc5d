package handler

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/actuallystonmai/dineright-service/internal/domain"
	"github.com/actuallystonmai/dineright-service/internal/model"
)

type RecommendationService interface {
	GetRecommendations(ctx context.Context, userID int64, refresh bool) (*domain.RecommendationResult, error)
	GetBatchRecommendations(ctx context.Context, page, limit int) (*domain.BatchResponse, error)
}

// WorkerStatus exposes the recommendation worker lifecycle for health checks.
type WorkerStatus interface {
	State() model.State
}

type Handler struct {
	service RecommendationService
	worker  WorkerStatus
	logger  *zap.Logger
}

func NewHandler(svc RecommendationService, worker WorkerStatus, logger *zap.Logger) *Handler {
	return &Handler{
		service: svc,
		worker:  worker,
		logger:  logger.Named("handler"),
	}
}

// write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writes JSON error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
