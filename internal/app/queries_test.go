package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"roomshare/internal/app"
	"roomshare/internal/domain"
)

func TestSearch_Filters(t *testing.T) {
	store, repos := newRepos(t)
	seedProperties(store)
	q := app.NewPropertyQueries(repos, nil)
	ctx := context.Background()

	all, err := q.Search(ctx, domain.PropertyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := q.Search(ctx, domain.PropertyFilter{Ward: "渋谷区", MaxRent: fptr(10)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Sunny Heights", got[0].Name)

	got, err = q.Search(ctx, domain.PropertyFilter{Layouts: []string{"2LDK"}, MinRent: fptr(12)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "3", got[0].ID)

	got, err = q.Search(ctx, domain.PropertyFilter{Ward: "新宿区"})
	require.NoError(t, err)
	require.Empty(t, got, "rent-less rows never show up in search")
}

func TestFacets(t *testing.T) {
	store, repos := newRepos(t)
	seedProperties(store)
	fc, err := app.NewPropertyQueries(repos, nil).Facets(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"渋谷区"}, fc.Wards)
	require.Equal(t, []string{"1K", "2LDK"}, fc.Layouts)
	require.Equal(t, 8.5, fc.MinRent)
	require.Equal(t, 12.0, fc.MaxRent)
}

func TestNearbyPOIs(t *testing.T) {
	store, repos := newRepos(t)
	poiHeader := []any{"店舗名称", "区", "Latitude", "Longitude"}
	store.Seed(testTabs.Supermarket, [][]any{poiHeader, {"SuperA", "渋谷区", 35.6, 139.7}, {"SuperB", "新宿区", 35.7, 139.7}})
	store.Seed(testTabs.Cafe, [][]any{poiHeader, {"CafeA", "渋谷区", 35.61, 139.71}, {"NoCoords", "渋谷区", "", ""}})
	q := app.NewPropertyQueries(repos, nil)
	ctx := context.Background()

	pois, err := q.NearbyPOIs(ctx, []string{"渋谷区"}, nil)
	require.NoError(t, err)
	require.Len(t, pois, 2)
	require.Equal(t, app.POISupermarket, pois[0].Kind)
	require.Equal(t, "CafeA", pois[1].Name)

	pois, err = q.NearbyPOIs(ctx, nil, []string{app.POISupermarket})
	require.NoError(t, err)
	require.Len(t, pois, 2)

	_, err = q.NearbyPOIs(ctx, nil, []string{"zoo"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFavoritesJoin(t *testing.T) {
	store, repos := newRepos(t)
	seedProperties(store)
	ctx := context.Background()
	for _, id := range []string{"3", "99", "2", "3"} {
		require.NoError(t, repos.Favorites.Add(ctx, "alice", id))
	}

	props, err := app.NewPropertyQueries(repos, nil).Favorites(ctx, "alice")
	require.NoError(t, err)
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
	}
	require.Equal(t, []string{"River Court", "Maple House", "River Court"}, names)
}

func TestDistance(t *testing.T) {
	store, repos := newRepos(t)
	seedProperties(store)
	fm := &fakeMaps{
		geo: map[string]*domain.Coords{
			"渋谷駅":        {Lat: 35.658, Lon: 139.701},
			"東京都新宿区2-2": {Lat: 35.69, Lon: 139.70},
		},
		route: domain.Route{Available: true, Status: "OK", DistanceMeters: 800},
	}
	q := app.NewPropertyQueries(repos, fm)
	ctx := context.Background()

	r, err := q.Distance(ctx, "1", "渋谷駅", "walking")
	require.NoError(t, err)
	require.True(t, r.Available)
	require.Equal(t, domain.Coords{Lat: 35.66, Lon: 139.70}, fm.from)

	// no coordinates on the row: the address is geocoded instead
	_, err = q.Distance(ctx, "2", "渋谷駅", "walking")
	require.NoError(t, err)
	require.Equal(t, domain.Coords{Lat: 35.69, Lon: 139.70}, fm.from)

	r, err = q.Distance(ctx, "1", "atlantis", "walking")
	require.NoError(t, err)
	require.False(t, r.Available)
	require.Equal(t, "DESTINATION_NOT_FOUND", r.Status)

	_, err = q.Distance(ctx, "77", "渋谷駅", "walking")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = app.NewPropertyQueries(repos, nil).Distance(ctx, "1", "渋谷駅", "walking")
	require.ErrorIs(t, err, domain.ErrUnavailable)
}
