// Package preference turns a user's stored preference facets into a
// recommendation request.
package preference

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

// Store reads the independently stored preference facets of a user.
// FindPreferences returns nil, nil when the user has no scalar preferences.
type Store interface {
	FindPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error)
	FindPreferredCuisines(ctx context.Context, userID int64) ([]string, error)
	FindPreferredAmenities(ctx context.Context, userID int64) ([]string, error)
	FindPreferredAtmospheres(ctx context.Context, userID int64) ([]string, error)
	FindPreferredRestaurantTypes(ctx context.Context, userID int64) ([]string, error)
}

type Aggregator struct {
	store       Store
	resultLimit int
	logger      *zap.Logger
}

func NewAggregator(store Store, resultLimit int, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:       store,
		resultLimit: resultLimit,
		logger:      logger.Named("preference"),
	}
}

// Aggregate builds the recommendation request for userID. Facet reads are
// independent: a failed read is logged and treated as an empty facet.
func (a *Aggregator) Aggregate(ctx context.Context, userID int64) domain.RecommendationRequest {
	var (
		prefs           *domain.UserPreferences
		cuisines        []string
		amenities       []string
		atmospheres     []string
		restaurantTypes []string
	)

	// Each goroutine swallows its own error, so g.Wait never fails and a
	// failing facet never cancels the others.
	var g errgroup.Group
	g.Go(func() error {
		p, err := a.store.FindPreferences(ctx, userID)
		if err != nil {
			a.facetFailed(userID, "preferences", err)
			return nil
		}
		prefs = p
		return nil
	})
	g.Go(a.readList(ctx, userID, "cuisines", a.store.FindPreferredCuisines, &cuisines))
	g.Go(a.readList(ctx, userID, "amenities", a.store.FindPreferredAmenities, &amenities))
	g.Go(a.readList(ctx, userID, "atmospheres", a.store.FindPreferredAtmospheres, &atmospheres))
	g.Go(a.readList(ctx, userID, "restaurant_types", a.store.FindPreferredRestaurantTypes, &restaurantTypes))
	_ = g.Wait()

	req := domain.RecommendationRequest{ResultLimit: a.resultLimit}
	if prefs != nil {
		req.Location = prefs.PreferredLocation
		req.RadiusKm = prefs.RadiusKm
		req.BudgetLevel = prefs.PriceLevel
	}
	if len(cuisines) > 0 {
		req.CuisineTypes = cuisines
	}
	if len(amenities) > 0 {
		req.Amenities = amenities
	}
	if len(atmospheres) > 0 {
		req.Atmospheres = atmospheres
	}
	if len(restaurantTypes) > 0 {
		req.RestaurantTypes = restaurantTypes
	}
	return req
}

type listReader func(ctx context.Context, userID int64) ([]string, error)

func (a *Aggregator) readList(ctx context.Context, userID int64, facet string, read listReader, dst *[]string) func() error {
	return func() error {
		values, err := read(ctx, userID)
		if err != nil {
			a.facetFailed(userID, facet, err)
			return nil
		}
		*dst = values
		return nil
	}
}

func (a *Aggregator) facetFailed(userID int64, facet string, err error) {
	a.logger.Warn("preference facet unavailable, treating as empty",
		zap.Int64("user_id", userID),
		zap.String("facet", facet),
		zap.Error(err),
	)
}
