package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"roomshare/internal/app"
	"roomshare/internal/domain"
	"roomshare/internal/shared"
	"roomshare/internal/storage/memory"
)

var testTabs = shared.Tabs{
	Users:       "ユーザーDB",
	Properties:  "物件DB",
	Favorites:   "お気に入りDB",
	Chat:        "チャットデータDB",
	Ratings:     "評価DB",
	Supermarket: "スーパーDB",
	Convenience: "コンビニDB",
	Bank:        "銀行DB",
	Cafe:        "カフェDB",
}

var propertyHeader = []any{"名称", "アドレス", "家賃", "間取り", "階数", "面積", "アクセス①1駅名", "築年数", "物件詳細URL", "物件画像URL", "間取画像URL", "緯度", "経度", "区"}

func newStore() *memory.Store {
	return memory.New(testTabs.Users, testTabs.Properties, testTabs.Favorites, testTabs.Chat, testTabs.Ratings,
		testTabs.Supermarket, testTabs.Convenience, testTabs.Bank, testTabs.Cafe)
}

// seedProperties fills 物件DB with three rows; ids are row positions 1..3.
func seedProperties(s *memory.Store) {
	s.Seed(testTabs.Properties, [][]any{
		propertyHeader,
		{"Sunny Heights", "東京都渋谷区1-1", 8.5, "1K", "3階", "25", "渋谷", "5", "https://x/1", "", "", 35.66, 139.70, "渋谷区"},
		{"Maple House", "東京都新宿区2-2", "N/A", "1LDK", "2階", "40", "新宿", "12", "", "", "", "", "", "新宿区"},
		{"River Court", "東京都渋谷区3-3", "12.0", "2LDK", "7階", "55", "恵比寿", "1", "", "", "", 35.65, 139.71, "渋谷区"},
	})
}

func newRepos(t *testing.T) (*memory.Store, *app.Repositories) {
	t.Helper()
	s := newStore()
	return s, app.NewRepositories(s, testTabs, nil, 0)
}

// ---- fakes ----

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
	res   domain.DeliveryResult
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, sender, text, propertyName string) (domain.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sender+"|"+text+"|"+propertyName)
	return f.res, f.err
}

type fakeMaps struct {
	geo   map[string]*domain.Coords
	route domain.Route
	from  domain.Coords
}

func (f *fakeMaps) Geocode(_ context.Context, address string) (*domain.Coords, error) {
	return f.geo[address], nil
}

func (f *fakeMaps) Distance(_ context.Context, from, to domain.Coords, mode string) (domain.Route, error) {
	f.from = from
	r := f.route
	r.Mode = mode
	return r, nil
}

func fixedClock(ts string) func() time.Time {
	t, err := time.Parse(app.TimestampLayout, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func fptr(f float64) *float64 { return &f }
