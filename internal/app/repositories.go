package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"roomshare/internal/domain"
	"roomshare/internal/shared"
	"roomshare/internal/table"
)

// TabRepository decodes the rows of one tab into T. Filtering happens in
// memory after a full read; the backing store has no query language.
type TabRepository[T any] struct {
	acc    table.Accessor
	decode func(pos int, r table.Row) (T, bool)
	encode func(T) []any
}

func NewTabRepository[T any](acc table.Accessor, decode func(int, table.Row) (T, bool), encode func(T) []any) *TabRepository[T] {
	return &TabRepository[T]{acc: acc, decode: decode, encode: encode}
}

func (r *TabRepository[T]) Tab() string { return r.acc.Name() }

func (r *TabRepository[T]) All(ctx context.Context) ([]T, error) {
	return r.Filter(ctx, nil)
}

// Filter returns the decoded rows for which keep is true (all rows when keep is nil).
func (r *TabRepository[T]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	rows, err := r.acc.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.acc.Name(), err)
	}
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v, ok := r.decode(position(i, row), row)
		if !ok {
			continue
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// position is the row's place in the tab below the header, so blank lines
// keep the numbering the sheet shows.
func position(i int, row table.Row) int {
	if p := row.Pos(); p > 0 {
		return p
	}
	return i + 1
}

// First returns the first matching row. A miss is (zero, false, nil).
func (r *TabRepository[T]) First(ctx context.Context, match func(T) bool) (T, bool, error) {
	var zero T
	rows, err := r.acc.ReadAll(ctx)
	if err != nil {
		return zero, false, fmt.Errorf("read %s: %w", r.acc.Name(), err)
	}
	for i, row := range rows {
		if v, ok := r.decode(position(i, row), row); ok && match(v) {
			return v, true, nil
		}
	}
	return zero, false, nil
}

func (r *TabRepository[T]) Append(ctx context.Context, v T) error {
	if err := r.acc.AppendRow(ctx, r.encode(v)); err != nil {
		return fmt.Errorf("append to %s: %w", r.acc.Name(), err)
	}
	return nil
}

// DeleteWhere removes matching rows by rewriting the tab. Rows that do not
// decode are kept. Not atomic: see package table.
func (r *TabRepository[T]) DeleteWhere(ctx context.Context, match func(T) bool) (int, error) {
	n, err := r.acc.DeleteWhere(ctx, func(row table.Row) bool {
		v, ok := r.decode(0, row)
		return ok && match(v)
	})
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", r.acc.Name(), err)
	}
	return n, nil
}

// EnsureSchema writes the expected header into an empty tab.
func (r *TabRepository[T]) EnsureSchema(ctx context.Context) error {
	if err := r.acc.EnsureHeader(ctx); err != nil {
		return fmt.Errorf("ensure header on %s: %w", r.acc.Name(), err)
	}
	return nil
}

/********** users **********/

type UserRepository struct{ *TabRepository[domain.User] }

func (r UserRepository) Create(ctx context.Context, username, passwordHash string) error {
	return r.Append(ctx, domain.User{Username: username, PasswordHash: passwordHash})
}

// Authenticate returns the first row whose username and hash both match.
func (r UserRepository) Authenticate(ctx context.Context, username, passwordHash string) (domain.User, bool, error) {
	return r.First(ctx, func(u domain.User) bool {
		return u.Username == username && u.PasswordHash == passwordHash
	})
}

func (r UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	_, ok, err := r.First(ctx, func(u domain.User) bool { return u.Username == username })
	return ok, err
}

/********** properties **********/

type PropertyRepository struct{ *TabRepository[domain.Property] }

// ListAll returns the properties that have a usable rent.
func (r PropertyRepository) ListAll(ctx context.Context) ([]domain.Property, error) {
	return r.Filter(ctx, func(p domain.Property) bool { return p.Rent != nil })
}

// FindByID also finds rows that ListAll drops.
func (r PropertyRepository) FindByID(ctx context.Context, id string) (domain.Property, bool, error) {
	key := table.Key(id)
	return r.First(ctx, func(p domain.Property) bool { return p.ID == key })
}

/********** favorites **********/

type FavoriteRepository struct{ *TabRepository[domain.Favorite] }

// Add appends without a duplicate check.
func (r FavoriteRepository) Add(ctx context.Context, username, propertyID string) error {
	return r.Append(ctx, domain.Favorite{Username: username, PropertyID: table.Key(propertyID)})
}

// ListFor returns the property ids in insertion order, duplicates included.
func (r FavoriteRepository) ListFor(ctx context.Context, username string) ([]string, error) {
	favs, err := r.Filter(ctx, func(f domain.Favorite) bool { return f.Username == username })
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(favs))
	for i, f := range favs {
		ids[i] = f.PropertyID
	}
	return ids, nil
}

// Remove drops every row matching both username and property id.
func (r FavoriteRepository) Remove(ctx context.Context, username, propertyID string) (int, error) {
	key := table.Key(propertyID)
	return r.DeleteWhere(ctx, func(f domain.Favorite) bool {
		return f.Username == username && f.PropertyID == key
	})
}

/********** chat & ratings **********/

type ChatRepository struct{ *TabRepository[domain.ChatMessage] }

// ListFor returns a property's messages in append order.
func (r ChatRepository) ListFor(ctx context.Context, propertyID string) ([]domain.ChatMessage, error) {
	key := table.Key(propertyID)
	return r.Filter(ctx, func(m domain.ChatMessage) bool { return m.PropertyID == key })
}

type RatingRepository struct{ *TabRepository[domain.Rating] }

func (r RatingRepository) ListFor(ctx context.Context, propertyID string) ([]domain.Rating, error) {
	key := table.Key(propertyID)
	return r.Filter(ctx, func(x domain.Rating) bool { return x.PropertyID == key })
}

// LatestRatings keeps one rating per rater for the property.
func (r RatingRepository) LatestRatings(ctx context.Context, propertyID string) ([]domain.Rating, error) {
	all, err := r.ListFor(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return LatestPerRater(all), nil
}

// LatestPerRater stable-sorts by timestamp string and keeps the last row per
// rater, so equal timestamps resolve to the most recently appended row. The
// result is ordered by timestamp.
func LatestPerRater(in []domain.Rating) []domain.Rating {
	sorted := append([]domain.Rating(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	last := make(map[string]int, len(sorted))
	for i, x := range sorted {
		last[x.Rater] = i
	}
	out := make([]domain.Rating, 0, len(last))
	for i, x := range sorted {
		if last[x.Rater] == i {
			out = append(out, x)
		}
	}
	return out
}

/********** points of interest **********/

type POIRepository struct{ *TabRepository[domain.POI] }

const (
	POISupermarket = "supermarket"
	POIConvenience = "convenience"
	POIBank        = "bank"
	POICafe        = "cafe"
)

var POIKinds = []string{POISupermarket, POIConvenience, POIBank, POICafe}

/********** wiring **********/

type Repositories struct {
	Users      UserRepository
	Properties PropertyRepository
	Favorites  FavoriteRepository
	Chat       ChatRepository
	Ratings    RatingRepository
	POIs       map[string]POIRepository
}

// NewRepositories binds every tab of the document. With a non-nil cache all
// reads are served read-through for ttl and every write invalidates its tab.
func NewRepositories(store table.Store, tabs shared.Tabs, cache domain.Cache, ttl time.Duration) *Repositories {
	acc := func(name string, header []string) table.Accessor {
		t := table.New(store, name, header)
		if cache == nil {
			return t
		}
		return table.NewCached(t, cache, ttl)
	}
	return &Repositories{
		Users:      UserRepository{NewTabRepository(acc(tabs.Users, userHeader), decodeUser, encodeUser)},
		Properties: PropertyRepository{NewTabRepository[domain.Property](acc(tabs.Properties, nil), decodeProperty, nil)},
		Favorites:  FavoriteRepository{NewTabRepository(acc(tabs.Favorites, favoriteHeader), decodeFavorite, encodeFavorite)},
		Chat:       ChatRepository{NewTabRepository(acc(tabs.Chat, chatHeader), decodeChat, encodeChat)},
		Ratings:    RatingRepository{NewTabRepository(acc(tabs.Ratings, ratingHeader), decodeRating, encodeRating)},
		POIs: map[string]POIRepository{
			POISupermarket: {NewTabRepository[domain.POI](acc(tabs.Supermarket, nil), decodePOI(POISupermarket), nil)},
			POIConvenience: {NewTabRepository[domain.POI](acc(tabs.Convenience, nil), decodePOI(POIConvenience), nil)},
			POIBank:        {NewTabRepository[domain.POI](acc(tabs.Bank, nil), decodePOI(POIBank), nil)},
			POICafe:        {NewTabRepository[domain.POI](acc(tabs.Cafe, nil), decodePOI(POICafe), nil)},
		},
	}
}

// SchemaOwner is a repository whose tab the app writes to.
type SchemaOwner interface {
	Tab() string
	EnsureSchema(ctx context.Context) error
}

func (r *Repositories) Writable() []SchemaOwner {
	return []SchemaOwner{r.Users, r.Favorites, r.Chat, r.Ratings}
}
