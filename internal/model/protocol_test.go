package model

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

func TestEncodeRequestOmitsEmptyFacets(t *testing.T) {
	data, err := encodeRequest(domain.RecommendationRequest{
		CuisineTypes:    []string{},
		Atmospheres:     nil,
		Amenities:       []string{},
		RestaurantTypes: nil,
		ResultLimit:     10,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 10}`, string(data))
}

func TestEncodeRequestKeepsFacetOrder(t *testing.T) {
	radius, budget := 10, 3
	data, err := encodeRequest(domain.RecommendationRequest{
		Location:        "Cork City",
		RadiusKm:        &radius,
		CuisineTypes:    []string{"Italian", "Indian", "Italian"},
		BudgetLevel:     &budget,
		Atmospheres:     []string{"Cozy"},
		Amenities:       []string{"Wifi", "Parking"},
		RestaurantTypes: []string{"Cafe"},
		ResultLimit:     5,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"address": "Cork City",
		"radius_km": 10,
		"cuisine_type": ["Italian", "Indian", "Italian"],
		"budget_filter": 3,
		"atmosphere_filter": ["Cozy"],
		"amenities_filter": ["Wifi", "Parking"],
		"restaurant_type_filter": ["Cafe"],
		"n": 5
	}`, string(data))
}

func TestEncodeRequestKeepsZeroScalarsWhenSet(t *testing.T) {
	zero := 0
	data, err := encodeRequest(domain.RecommendationRequest{RadiusKm: &zero, ResultLimit: 1})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "radius_km")
	assert.NotContains(t, doc, "budget_filter")
}

func TestDecodeResponse(t *testing.T) {
	t.Run("ordered ids", func(t *testing.T) {
		ids, err := decodeResponse([]byte("  {\"place_ids\": [7, 3, 9]}\n"), "place_ids")
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 3, 9}, ids)
	})

	t.Run("empty list is a valid answer", func(t *testing.T) {
		ids, err := decodeResponse([]byte(`{"place_ids": []}`), "place_ids")
		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	})

	t.Run("extra keys are ignored", func(t *testing.T) {
		ids, err := decodeResponse([]byte(`{"debug": {"filtered": 12}, "results": [1]}`), "results")
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})

	failures := map[string]string{
		"empty":         "",
		"whitespace":    " \n\t",
		"not an object": `[1, 2, 3]`,
		"missing key":   `{"ids": [1]}`,
		"null":          `{"place_ids": null}`,
		"floats":        `{"place_ids": [1.5]}`,
		"scalar":        `{"place_ids": 4}`,
		"truncated":     `{"place_ids": [1, 2`,
	}
	for name, output := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := decodeResponse([]byte(output), "place_ids")
			assert.Error(t, err)
		})
	}
}
