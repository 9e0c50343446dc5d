package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

func (r *Repository) FindRestaurantByID(ctx context.Context, id int64) (*domain.Restaurant, error) {
	rest := &domain.Restaurant{}
	var (
		restaurantType, cuisine, address, country *string
		priceRange, phone, website                *string
		atmosphere, amenities                     *string
		rating                                    *float64
		reviewCount                               *int64
	)

	err := r.pool.QueryRow(ctx,
		`SELECT place_id, name, restaurant_type, cuisine_type, address, country,
		        rating, review_count, price_range, phone, website, atmosphere, amenities
		 FROM restaurant_metadata WHERE place_id = $1`,
		id,
	).Scan(&rest.ID, &rest.Name, &restaurantType, &cuisine, &address, &country,
		&rating, &reviewCount, &priceRange, &phone, &website, &atmosphere, &amenities)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("query restaurant id=%d: %w", id, err)
	}

	rest.RestaurantType = deref(restaurantType)
	rest.CuisineType = deref(cuisine)
	rest.Address = deref(address)
	rest.Country = deref(country)
	rest.PriceRange = deref(priceRange)
	rest.Phone = deref(phone)
	rest.Website = deref(website)
	rest.Atmosphere = deref(atmosphere)
	rest.Amenities = deref(amenities)
	if rating != nil {
		rest.Rating = *rating
	}
	if reviewCount != nil {
		rest.ReviewCount = *reviewCount
	}
	return rest, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
