package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/actuallystonmai/dineright-service/internal/domain"
	"github.com/actuallystonmai/dineright-service/internal/resolver"
)

// GET /users/{userID}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	// Parse and validate user_id
	userIDStr := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid user_id parameter")
		return
	}

	refresh := false
	if refreshStr := r.URL.Query().Get("refresh"); refreshStr != "" {
		parsed, err := strconv.ParseBool(refreshStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid refresh parameter")
			return
		}
		refresh = parsed
	}

	result, err := h.service.GetRecommendations(r.Context(), userID, refresh)
	if err != nil {
		var missing *resolver.MissingRestaurantError
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user_not_found",
				fmt.Sprintf("User with ID %d does not exist", userID))
		case errors.As(err, &missing):
			h.logger.Error("recommended restaurant missing", zap.Int64("user_id", userID), zap.Error(err))
			writeError(w, http.StatusBadGateway, "restaurant_not_found",
				"A recommended restaurant is no longer available")
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeError(w, http.StatusServiceUnavailable, "request_timeout",
				"Request timed out, please try again")
		default:
			h.logger.Error("get recommendations failed", zap.Int64("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}
		return
	}

	resp := RecommendationResponse{
		UserID:          userID,
		Recommendations: result.Restaurants,
		Metadata: domain.RecommendationMeta{
			CacheHit:       result.CacheHit,
			Degraded:       result.Degraded,
			DegradedReason: result.DegradedReason,
			GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
			TotalCount:     len(result.Restaurants),
		},
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []domain.RecommendedRestaurant{}
	}

	writeJSON(w, http.StatusOK, resp)
}
