package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

type fakeRegistry struct {
	restaurants map[int64]domain.Restaurant
	calls       []int64
	err         error
}

func (f *fakeRegistry) FindRestaurantByID(ctx context.Context, id int64) (*domain.Restaurant, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.restaurants[id]
	if !ok {
		return nil, domain.ErrRestaurantNotFound
	}
	return &r, nil
}

func newRegistry() *fakeRegistry {
	return &fakeRegistry{restaurants: map[int64]domain.Restaurant{
		3: {ID: 3, Name: "Market Lane", Address: "5 Oliver Plunkett St", CuisineType: "Irish"},
		9: {ID: 9, Name: "Miyazaki", Address: "1A Evergreen St", CuisineType: "Japanese"},
	}}
}

func TestResolveSkipMissing(t *testing.T) {
	registry := newRegistry()
	r := New(registry, SkipMissing, zaptest.NewLogger(t))

	views, err := r.Resolve(context.Background(), []int64{7, 3, 9})
	require.NoError(t, err)

	assert.Equal(t, []domain.RecommendedRestaurant{
		{PlaceID: 3, Rank: 2, Name: "Market Lane", Location: "5 Oliver Plunkett St", Cuisine: "Irish"},
		{PlaceID: 9, Rank: 3, Name: "Miyazaki", Location: "1A Evergreen St", Cuisine: "Japanese"},
	}, views)
	assert.Equal(t, []int64{7, 3, 9}, registry.calls)
}

func TestResolveFailFast(t *testing.T) {
	registry := newRegistry()
	r := New(registry, FailFast, zaptest.NewLogger(t))

	views, err := r.Resolve(context.Background(), []int64{7, 3, 9})
	require.Error(t, err)
	assert.Nil(t, views)

	var missing *MissingRestaurantError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, int64(7), missing.ID)
	assert.Equal(t, 1, missing.Rank)
	assert.ErrorIs(t, err, domain.ErrRestaurantNotFound)
	assert.Equal(t, []int64{7}, registry.calls)
}

func TestResolvePreservesRankOrder(t *testing.T) {
	r := New(newRegistry(), FailFast, zaptest.NewLogger(t))

	views, err := r.Resolve(context.Background(), []int64{9, 3})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(9), views[0].PlaceID)
	assert.Equal(t, int64(3), views[1].PlaceID)
}

func TestResolveEmpty(t *testing.T) {
	r := New(newRegistry(), SkipMissing, zaptest.NewLogger(t))

	views, err := r.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestResolveRegistryErrorFailsUnderBothPolicies(t *testing.T) {
	for _, policy := range []MissingPolicy{SkipMissing, FailFast} {
		registry := newRegistry()
		registry.err = errors.New("pool exhausted")
		r := New(registry, policy, zaptest.NewLogger(t))

		_, err := r.Resolve(context.Background(), []int64{3})
		assert.ErrorContains(t, err, "pool exhausted")
	}
}

func TestParseMissingPolicy(t *testing.T) {
	p, err := ParseMissingPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)

	p, err = ParseMissingPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, SkipMissing, p)

	_, err = ParseMissingPolicy("ignore")
	assert.Error(t, err)
}
