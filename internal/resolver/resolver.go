// Package resolver maps ranked restaurant ids onto restaurant view records.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

// Registry looks up restaurants by id. Unknown ids yield domain.ErrRestaurantNotFound.
type Registry interface {
	FindRestaurantByID(ctx context.Context, id int64) (*domain.Restaurant, error)
}

// MissingPolicy decides what happens to ranked ids without a registry record.
type MissingPolicy int

const (
	// SkipMissing drops unknown ids and keeps the rest in rank order.
	SkipMissing MissingPolicy = iota
	// FailFast aborts the whole resolution on the first unknown id.
	FailFast
)

// ParseMissingPolicy accepts "skip" or "fail".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch s {
	case "skip", "":
		return SkipMissing, nil
	case "fail":
		return FailFast, nil
	}
	return SkipMissing, fmt.Errorf("unknown missing restaurant policy %q", s)
}

// MissingRestaurantError is returned under FailFast.
type MissingRestaurantError struct {
	ID   int64
	Rank int
}

func (e *MissingRestaurantError) Error() string {
	return fmt.Sprintf("restaurant %d at rank %d not found", e.ID, e.Rank)
}

func (e *MissingRestaurantError) Unwrap() error {
	return domain.ErrRestaurantNotFound
}

type Resolver struct {
	registry Registry
	policy   MissingPolicy
	logger   *zap.Logger
}

func New(registry Registry, policy MissingPolicy, logger *zap.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		policy:   policy,
		logger:   logger.Named("resolver"),
	}
}

// Resolve looks up every id once, in order. Rank is the id's 1-based
// position in ids, so skipped ids leave gaps rather than shifting ranks.
func (r *Resolver) Resolve(ctx context.Context, ids []int64) ([]domain.RecommendedRestaurant, error) {
	out := make([]domain.RecommendedRestaurant, 0, len(ids))

	for i, id := range ids {
		rank := i + 1
		restaurant, err := r.registry.FindRestaurantByID(ctx, id)
		if errors.Is(err, domain.ErrRestaurantNotFound) {
			if r.policy == FailFast {
				return nil, &MissingRestaurantError{ID: id, Rank: rank}
			}
			r.logger.Warn("skipping recommended restaurant missing from registry",
				zap.Int64("place_id", id),
				zap.Int("rank", rank),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve restaurant %d: %w", id, err)
		}

		out = append(out, domain.RecommendedRestaurant{
			PlaceID:  restaurant.ID,
			Rank:     rank,
			Name:     restaurant.Name,
			Location: restaurant.Address,
			Cuisine:  restaurant.CuisineType,
		})
	}
	return out, nil
}
