package domain

// UserPreferences holds the scalar preference facets of a user.
// Nil pointers and empty strings mean the user never set the value.
type UserPreferences struct {
	UserID            int64
	PreferredLocation string
	RadiusKm          *int
	PriceLevel        *int
}
