package seeds

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	cities          = []string{"Cork", "Dublin", "Galway", "Limerick", "Waterford", "Kilkenny"}
	cuisines        = []string{"Italian", "Indian", "Japanese", "Mexican", "Irish", "Thai", "French", "Lebanese"}
	restaurantTypes = []string{"Casual Dining", "Fine Dining", "Cafe", "Pub", "Fast Casual", "Bistro"}
	atmospheres     = []string{"Cozy", "Romantic", "Lively", "Family Friendly", "Quiet", "Trendy"}
	amenities       = []string{"Outdoor Seating", "Wheelchair Accessible", "Free WiFi", "Parking", "Live Music", "Vegan Options"}
	priceRanges     = []string{"$", "$$", "$$$", "$$$$"}
	priceWeights    = []float64{0.3, 0.4, 0.2, 0.1}
	firstNames      = []string{"Aoife", "Conor", "Niamh", "Sean", "Ciara", "Liam", "Sinead", "Darragh", "Orla", "Eoin"}
)

func Setup(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	log := logger.Named("seed")
	rng := rand.New(rand.NewSource(42))

	// Truncate existing data before insert
	log.Info("truncating existing data")
	if _, err := pool.Exec(ctx, `
		TRUNCATE user_preferred_restaurant_type, preferred_atmosphere, user_preferred_amenities,
		         user_preferred_cuisines, userpreferences, restaurant_metadata, users
		RESTART IDENTITY CASCADE
	`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	log.Info("inserting users")
	if err := seedUsers(ctx, pool, rng, 20); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	log.Info("inserting restaurants")
	if err := seedRestaurants(ctx, pool, rng, 60); err != nil {
		return fmt.Errorf("seed restaurants: %w", err)
	}

	log.Info("inserting preferences")
	if err := seedPreferences(ctx, pool, rng, 20); err != nil {
		return fmt.Errorf("seed preferences: %w", err)
	}

	log.Info("seeding complete")
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	rows := []string{}
	args := []any{}

	for i := range n {
		name := firstNames[rng.Intn(len(firstNames))]
		email := fmt.Sprintf("%s.%d@example.com", strings.ToLower(name), i+1)
		createdAt := time.Now().AddDate(0, 0, -rng.Intn(365))

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, name, email, createdAt)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO users (name, email, created_at) VALUES " + strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

func seedRestaurants(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	rows := []string{}
	args := []any{}

	for i := range n {
		placeID := int64(1000 + i)
		cuisine := cuisines[i%len(cuisines)]
		city := cities[rng.Intn(len(cities))]
		name := fmt.Sprintf("%s Kitchen %d", cuisine, i/len(cuisines)+1)
		address := fmt.Sprintf("%d Main Street, %s", rng.Intn(200)+1, city)

		base := len(args)
		placeholders := make([]string, 11)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		rows = append(rows, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			placeID,
			name,
			restaurantTypes[rng.Intn(len(restaurantTypes))],
			cuisine,
			address,
			"Ireland",
			ratingScore(rng),
			int64(math.Ceil(math.Pow(rng.Float64(), 2)*2000)),
			weightedChoice(rng, priceRanges, priceWeights),
			atmospheres[rng.Intn(len(atmospheres))],
			strings.Join(pickN(rng, amenities, 2), ", "),
		)
	}

	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO restaurant_metadata
		(place_id, name, restaurant_type, cuisine_type, address, country,
		 rating, review_count, price_range, atmosphere, amenities) VALUES ` +
		strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

// Every user gets scalar preferences; facets are sparse so some users
// exercise the "no filter" path.
func seedPreferences(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, users int) error {
	facets := []struct {
		table  string
		column string
		values []string
		max    int
	}{
		{"user_preferred_cuisines", "preferred_cuisines", cuisines, 3},
		{"user_preferred_amenities", "preferred_amenities", amenities, 2},
		{"preferred_atmosphere", "preferred_atmosphere", atmospheres, 2},
		{"user_preferred_restaurant_type", "preferred_restauranttype", restaurantTypes, 2},
	}

	for userID := int64(1); userID <= int64(users); userID++ {
		var radius, price any
		if rng.Float64() < 0.8 {
			radius = rng.Intn(20) + 1
		}
		if rng.Float64() < 0.8 {
			price = rng.Intn(4) + 1
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO userpreferences (user_id, preferred_location, radius_km, preferred_price_level)
			 VALUES ($1, $2, $3, $4)`,
			userID, cities[rng.Intn(len(cities))], radius, price,
		); err != nil {
			return fmt.Errorf("insert preferences for user %d: %w", userID, err)
		}

		for _, facet := range facets {
			picked := pickN(rng, facet.values, rng.Intn(facet.max+1))
			for _, v := range picked {
				query := fmt.Sprintf("INSERT INTO %s (user_id, %s) VALUES ($1, $2)", facet.table, facet.column)
				if _, err := pool.Exec(ctx, query, userID, v); err != nil {
					return fmt.Errorf("insert %s for user %d: %w", facet.table, userID, err)
				}
			}
		}
	}
	return nil
}

// Ratings skew high, between 2.5 and 5.0.
func ratingScore(rng *rand.Rand) float64 {
	raw := 5.0 - math.Pow(rng.Float64(), 2.0)*2.5
	return math.Round(raw*10) / 10
}

func pickN(rng *rand.Rand, values []string, n int) []string {
	n = min(n, len(values))
	perm := rng.Perm(len(values))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, values[idx])
	}
	return out
}

func weightedChoice(rng *rand.Rand, choices []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
