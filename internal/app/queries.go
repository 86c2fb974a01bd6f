package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"roomshare/internal/domain"
	"roomshare/internal/table"
)

type PropertyQueries struct {
	props PropertyRepository
	favs  FavoriteRepository
	pois  map[string]POIRepository
	maps  domain.MapsClient
}

// NewPropertyQueries builds the read side. mc may be nil, which disables
// distance lookups.
func NewPropertyQueries(repos *Repositories, mc domain.MapsClient) *PropertyQueries {
	return &PropertyQueries{props: repos.Properties, favs: repos.Favorites, pois: repos.POIs, maps: mc}
}

// Search applies the sidebar filters to every property with a usable rent.
// Bounds are inclusive; an empty Layouts slice matches every layout.
func (q *PropertyQueries) Search(ctx context.Context, f domain.PropertyFilter) ([]domain.Property, error) {
	all, err := q.props.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	layouts := make(map[string]struct{}, len(f.Layouts))
	for _, l := range f.Layouts {
		layouts[strings.TrimSpace(l)] = struct{}{}
	}
	out := make([]domain.Property, 0, len(all))
	for _, p := range all {
		if f.Ward != "" && p.Ward != f.Ward {
			continue
		}
		if len(layouts) > 0 {
			if _, ok := layouts[p.Layout]; !ok {
				continue
			}
		}
		if f.MinRent != nil && *p.Rent < *f.MinRent {
			continue
		}
		if f.MaxRent != nil && *p.Rent > *f.MaxRent {
			continue
		}
		if f.GeoOnly && p.Coords == nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Facets lists the filter values present in the data, in first-seen order.
func (q *PropertyQueries) Facets(ctx context.Context) (domain.Facets, error) {
	all, err := q.props.ListAll(ctx)
	if err != nil {
		return domain.Facets{}, err
	}
	fc := domain.Facets{Wards: []string{}, Layouts: []string{}}
	seenW, seenL := map[string]bool{}, map[string]bool{}
	for i, p := range all {
		if p.Ward != "" && !seenW[p.Ward] {
			seenW[p.Ward] = true
			fc.Wards = append(fc.Wards, p.Ward)
		}
		if p.Layout != "" && !seenL[p.Layout] {
			seenL[p.Layout] = true
			fc.Layouts = append(fc.Layouts, p.Layout)
		}
		if i == 0 {
			fc.MinRent, fc.MaxRent = *p.Rent, *p.Rent
			continue
		}
		fc.MinRent = math.Min(fc.MinRent, *p.Rent)
		fc.MaxRent = math.Max(fc.MaxRent, *p.Rent)
	}
	return fc, nil
}

func (q *PropertyQueries) Get(ctx context.Context, id string) (domain.Property, bool, error) {
	return q.props.FindByID(ctx, id)
}

// NearbyPOIs loads the requested POI tabs concurrently and keeps the points
// in the given wards (all points when wards is empty). Unknown kinds are
// rejected.
func (q *PropertyQueries) NearbyPOIs(ctx context.Context, wards, kinds []string) ([]domain.POI, error) {
	if len(kinds) == 0 {
		kinds = POIKinds
	}
	repos := make([]POIRepository, len(kinds))
	for i, k := range kinds {
		r, ok := q.pois[k]
		if !ok {
			return nil, fmt.Errorf("%w: unknown poi kind %q", domain.ErrInvalidInput, k)
		}
		repos[i] = r
	}
	inWard := func(domain.POI) bool { return true }
	if len(wards) > 0 {
		set := make(map[string]struct{}, len(wards))
		for _, w := range wards {
			set[w] = struct{}{}
		}
		inWard = func(p domain.POI) bool {
			_, ok := set[p.Ward]
			return ok
		}
	}

	results := make([][]domain.POI, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range repos {
		i, r := i, r
		g.Go(func() error {
			pois, err := r.Filter(gctx, inWard)
			if err != nil {
				return err
			}
			results[i] = pois
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []domain.POI
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// Favorites joins the user's favorites with the property tab. Ids that no
// longer resolve are skipped; duplicates are kept.
func (q *PropertyQueries) Favorites(ctx context.Context, username string) ([]domain.Property, error) {
	ids, err := q.favs.ListFor(ctx, username)
	if err != nil {
		return nil, err
	}
	all, err := q.props.All(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Property, len(all))
	for _, p := range all {
		if _, dup := byID[p.ID]; !dup {
			byID[p.ID] = p
		}
	}
	out := make([]domain.Property, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[table.Key(id)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Distance geocodes the destination address and asks for a route from the
// property. An address with no match yields an unavailable route.
func (q *PropertyQueries) Distance(ctx context.Context, propertyID, to, mode string) (domain.Route, error) {
	if q.maps == nil {
		return domain.Route{}, fmt.Errorf("%w: maps disabled", domain.ErrUnavailable)
	}
	if strings.TrimSpace(to) == "" {
		return domain.Route{}, fmt.Errorf("%w: destination is required", domain.ErrInvalidInput)
	}
	p, ok, err := q.props.FindByID(ctx, propertyID)
	if err != nil {
		return domain.Route{}, err
	}
	if !ok {
		return domain.Route{}, domain.ErrNotFound
	}
	from := p.Coords
	if from == nil && p.Address != "" {
		if from, err = q.maps.Geocode(ctx, p.Address); err != nil {
			return domain.Route{}, err
		}
	}
	if from == nil {
		return domain.Route{Mode: mode, Status: "ORIGIN_NOT_FOUND"}, nil
	}
	dest, err := q.maps.Geocode(ctx, to)
	if err != nil {
		return domain.Route{}, err
	}
	if dest == nil {
		return domain.Route{Mode: mode, Status: "DESTINATION_NOT_FOUND"}, nil
	}
	return q.maps.Distance(ctx, *from, *dest, mode)
}
