package handler

import "github.com/actuallystonmai/dineright-service/internal/domain"

type RecommendationResponse struct {
	UserID          int64                          `json:"user_id"`
	Recommendations []domain.RecommendedRestaurant `json:"recommendations"`
	Metadata        domain.RecommendationMeta      `json:"metadata"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Worker string `json:"worker"`
}
