package app

import (
	"math"
	"strconv"
	"strings"

	"roomshare/internal/domain"
	"roomshare/internal/table"
)

/********** alias registries (single source of truth) **********/

// Sheet headers are Japanese; the English names are accepted for tabs
// exported from other tools.
var propertyAliases = map[string][]string{
	"id":            {"property_id", "id"},
	"name":          {"名称", "name"},
	"address":       {"アドレス", "住所", "address"},
	"rent":          {"家賃", "rent"},
	"layout":        {"間取り", "layout"},
	"floor":         {"階数", "floor"},
	"area":          {"面積", "area"},
	"station":       {"アクセス①1駅名", "最寄り駅", "station"},
	"age":           {"築年数", "age"},
	"detail_url":    {"物件詳細URL", "detail_url"},
	"image_url":     {"物件画像URL", "image_url"},
	"floorplan_url": {"間取画像URL", "floorplan_url"},
	"lat":           {"緯度", "latitude", "lat"},
	"lon":           {"経度", "longitude", "lon", "lng"},
	"ward":          {"区", "ward"},
}

var poiAliases = map[string][]string{
	"name": {"店舗名称", "名称", "name"},
	"ward": {"区", "ward"},
	"lat":  {"Latitude", "緯度", "latitude", "lat"},
	"lon":  {"Longitude", "経度", "longitude", "lon", "lng"},
}

// Expected headers for the tabs the app writes to.
var (
	userHeader     = []string{"username", "password"}
	favoriteHeader = []string{"username", "property_id"}
	chatHeader     = []string{"timestamp", "sender", "text", "property_id"}
	ratingHeader   = []string{"timestamp", "rater", "rating", "property_id"}
)

/********** tiny helpers **********/

// firstNonEmptyAlias: first non-empty cell for a named alias set.
func firstNonEmptyAlias(r table.Row, aliases map[string][]string, key string) string {
	for _, col := range aliases[key] {
		if s := strings.TrimSpace(r.String(col)); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from the first alias that parses. Strings like
// "8,5" or "8.5万円" are accepted; anything else is treated as missing.
func getFloatFlexible(r table.Row, paths ...string) *float64 {
	for _, k := range paths {
		switch v := r[k].(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			f := v
			return &f
		case string:
			s := strings.TrimSpace(v)
			s = strings.TrimSuffix(s, "万円")
			s = strings.ReplaceAll(s, ",", ".")
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return &f
			}
		}
	}
	return nil
}

func floatAlias(r table.Row, aliases map[string][]string, key string) *float64 {
	return getFloatFlexible(r, aliases[key]...)
}

func coords(r table.Row, aliases map[string][]string) *domain.Coords {
	lat := floatAlias(r, aliases, "lat")
	lon := floatAlias(r, aliases, "lon")
	if lat == nil || lon == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return nil
	}
	return &domain.Coords{Lat: *lat, Lon: *lon}
}

/********** row mappers **********/

// decodeProperty maps one 物件DB row. pos is the 1-based position below the
// header (blank lines counted), used as the id when the tab has no
// property_id column.
func decodeProperty(pos int, r table.Row) (domain.Property, bool) {
	id := table.Key(firstNonEmptyAlias(r, propertyAliases, "id"))
	if id == "" {
		id = strconv.Itoa(pos)
	}
	return domain.Property{
		ID:           id,
		Name:         firstNonEmptyAlias(r, propertyAliases, "name"),
		Address:      firstNonEmptyAlias(r, propertyAliases, "address"),
		Rent:         floatAlias(r, propertyAliases, "rent"),
		Layout:       firstNonEmptyAlias(r, propertyAliases, "layout"),
		Floor:        firstNonEmptyAlias(r, propertyAliases, "floor"),
		Area:         firstNonEmptyAlias(r, propertyAliases, "area"),
		Station:      firstNonEmptyAlias(r, propertyAliases, "station"),
		Age:          firstNonEmptyAlias(r, propertyAliases, "age"),
		DetailURL:    firstNonEmptyAlias(r, propertyAliases, "detail_url"),
		ImageURL:     firstNonEmptyAlias(r, propertyAliases, "image_url"),
		FloorplanURL: firstNonEmptyAlias(r, propertyAliases, "floorplan_url"),
		Coords:       coords(r, propertyAliases),
		Ward:         firstNonEmptyAlias(r, propertyAliases, "ward"),
	}, true
}

func decodePOI(kind string) func(int, table.Row) (domain.POI, bool) {
	return func(_ int, r table.Row) (domain.POI, bool) {
		c := coords(r, poiAliases)
		if c == nil {
			return domain.POI{}, false
		}
		return domain.POI{
			Kind:   kind,
			Name:   firstNonEmptyAlias(r, poiAliases, "name"),
			Ward:   firstNonEmptyAlias(r, poiAliases, "ward"),
			Coords: *c,
		}, true
	}
}

func decodeUser(_ int, r table.Row) (domain.User, bool) {
	u := domain.User{Username: r.String("username"), PasswordHash: r.String("password")}
	return u, u.Username != ""
}

func encodeUser(u domain.User) []any { return []any{u.Username, u.PasswordHash} }

func decodeFavorite(_ int, r table.Row) (domain.Favorite, bool) {
	f := domain.Favorite{Username: r.String("username"), PropertyID: table.Key(r["property_id"])}
	return f, f.Username != ""
}

func encodeFavorite(f domain.Favorite) []any { return []any{f.Username, idCell(f.PropertyID)} }

func decodeChat(_ int, r table.Row) (domain.ChatMessage, bool) {
	return domain.ChatMessage{
		Timestamp:  r.String("timestamp"),
		Sender:     r.String("sender"),
		Text:       r.String("text"),
		PropertyID: table.Key(r["property_id"]),
	}, true
}

func encodeChat(m domain.ChatMessage) []any {
	return []any{m.Timestamp, m.Sender, m.Text, idCell(m.PropertyID)}
}

// decodeRating skips rows whose score is not a number.
func decodeRating(_ int, r table.Row) (domain.Rating, bool) {
	score := getFloatFlexible(r, "rating")
	if score == nil {
		return domain.Rating{}, false
	}
	return domain.Rating{
		Timestamp:  r.String("timestamp"),
		Rater:      r.String("rater"),
		Score:      *score,
		PropertyID: table.Key(r["property_id"]),
	}, true
}

func encodeRating(r domain.Rating) []any {
	return []any{r.Timestamp, r.Rater, r.Score, idCell(r.PropertyID)}
}

// idCell writes numeric ids as numbers so the sheet keeps the column
// numeric, matching rows written by earlier versions.
func idCell(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
