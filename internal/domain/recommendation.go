package domain

// RecommendationRequest is the normalized input for the recommendation worker.
// Empty facets and unset scalars mean "no filter on that dimension".
type RecommendationRequest struct {
	Location        string
	RadiusKm        *int
	CuisineTypes    []string
	BudgetLevel     *int
	Atmospheres     []string
	Amenities       []string
	RestaurantTypes []string
	ResultLimit     int
}

type RecommendationMeta struct {
	CacheHit       bool   `json:"cache_hit"`
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
	GeneratedAt    string `json:"generated_at"`
	TotalCount     int    `json:"total_count"`
}

type RecommendationResult struct {
	Restaurants    []RecommendedRestaurant
	CacheHit       bool
	Degraded       bool
	DegradedReason string
}

type BatchStatus string

const (
	StatusSuccess BatchStatus = "success"
	StatusFailed  BatchStatus = "failed"
)

type BatchUserResult struct {
	UserID          int64                   `json:"user_id"`
	Recommendations []RecommendedRestaurant `json:"recommendations,omitempty"`
	Degraded        bool                    `json:"degraded,omitempty"`
	Status          BatchStatus             `json:"status"`
	Error           string                  `json:"error,omitempty"`
	Message         string                  `json:"message,omitempty"`
}

type BatchSummary struct {
	SuccessCount     int   `json:"success_count"`
	FailedCount      int   `json:"failed_count"`
	DegradedCount    int   `json:"degraded_count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

type BatchMeta struct {
	GeneratedAt string `json:"generated_at"`
}

type BatchResponse struct {
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalUsers int               `json:"total_users"`
	Results    []BatchUserResult `json:"results"`
	Summary    BatchSummary      `json:"summary"`
	Metadata   BatchMeta         `json:"metadata"`
}
