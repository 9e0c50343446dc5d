package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

// Scalar preferences, nil when the user never saved any
func (r *Repository) FindPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	prefs := &domain.UserPreferences{UserID: userID}
	var location *string

	err := r.pool.QueryRow(ctx,
		`SELECT preferred_location, radius_km, preferred_price_level
		 FROM userpreferences WHERE user_id = $1`,
		userID,
	).Scan(&location, &prefs.RadiusKm, &prefs.PriceLevel)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query preferences for user %d: %w", userID, err)
	}
	if location != nil {
		prefs.PreferredLocation = *location
	}
	return prefs, nil
}

func (r *Repository) FindPreferredCuisines(ctx context.Context, userID int64) ([]string, error) {
	return r.findFacet(ctx, userID,
		`SELECT preferred_cuisines FROM user_preferred_cuisines WHERE user_id = $1 ORDER BY c_id`)
}

func (r *Repository) FindPreferredAmenities(ctx context.Context, userID int64) ([]string, error) {
	return r.findFacet(ctx, userID,
		`SELECT preferred_amenities FROM user_preferred_amenities WHERE user_id = $1 ORDER BY a_id`)
}

func (r *Repository) FindPreferredAtmospheres(ctx context.Context, userID int64) ([]string, error) {
	return r.findFacet(ctx, userID,
		`SELECT preferred_atmosphere FROM preferred_atmosphere WHERE user_id = $1 ORDER BY at_id`)
}

func (r *Repository) FindPreferredRestaurantTypes(ctx context.Context, userID int64) ([]string, error) {
	return r.findFacet(ctx, userID,
		`SELECT preferred_restauranttype FROM user_preferred_restaurant_type WHERE user_id = $1 ORDER BY r_id`)
}

// One string column per row, in storage order
func (r *Repository) findFacet(ctx context.Context, userID int64, query string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query facet for user %d: %w", userID, err)
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect facet for user %d: %w", userID, err)
	}
	return values, nil
}
