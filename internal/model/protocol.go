package model

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

// wireRequest is the document written to the worker's stdin.
// Empty facets and unset scalars are omitted; n is always sent.
type wireRequest struct {
	Address              string   `json:"address,omitempty"`
	RadiusKm             *int     `json:"radius_km,omitempty"`
	CuisineType          []string `json:"cuisine_type,omitempty"`
	BudgetFilter         *int     `json:"budget_filter,omitempty"`
	AtmosphereFilter     []string `json:"atmosphere_filter,omitempty"`
	AmenitiesFilter      []string `json:"amenities_filter,omitempty"`
	RestaurantTypeFilter []string `json:"restaurant_type_filter,omitempty"`
	N                    int      `json:"n"`
}

var errEmptyOutput = errors.New("worker produced no output")

func encodeRequest(req domain.RecommendationRequest) ([]byte, error) {
	return json.Marshal(wireRequest{
		Address:              req.Location,
		RadiusKm:             req.RadiusKm,
		CuisineType:          req.CuisineTypes,
		BudgetFilter:         req.BudgetLevel,
		AtmosphereFilter:     req.Atmospheres,
		AmenitiesFilter:      req.Amenities,
		RestaurantTypeFilter: req.RestaurantTypes,
		N:                    req.ResultLimit,
	})
}

// decodeResponse extracts the ranked id list stored under key.
// An empty list is a valid answer; a missing or null key is not.
func decodeResponse(output []byte, key string) ([]int64, error) {
	output = bytes.TrimSpace(output)
	if len(output) == 0 {
		return nil, errEmptyOutput
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(output, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw, ok := doc[key]
	if !ok {
		return nil, fmt.Errorf("response has no %q key", key)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("response key %q is null", key)
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode %q as integer list: %w", key, err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
