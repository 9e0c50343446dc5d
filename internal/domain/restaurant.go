package domain

type Restaurant struct {
	ID             int64   `json:"place_id"`
	Name           string  `json:"name"`
	RestaurantType string  `json:"restaurant_type"`
	CuisineType    string  `json:"cuisine_type"`
	Address        string  `json:"address"`
	Country        string  `json:"country"`
	Rating         float64 `json:"rating"`
	ReviewCount    int64   `json:"review_count"`
	PriceRange     string  `json:"price_range"`
	Phone          string  `json:"phone"`
	Website        string  `json:"website"`
	Atmosphere     string  `json:"atmosphere"`
	Amenities      string  `json:"amenities"`
}

// RecommendedRestaurant is the view returned to clients for one ranked id.
type RecommendedRestaurant struct {
	PlaceID  int64  `json:"place_id"`
	Rank     int    `json:"rank"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Cuisine  string `json:"cuisine"`
}
