package domain

type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// Property is read-only reference data maintained outside the app.
type Property struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Address      string   `json:"address,omitempty"`
	Rent         *float64 `json:"rent,omitempty"` // 万円
	Layout       string   `json:"layout,omitempty"`
	Floor        string   `json:"floor,omitempty"`
	Area         string   `json:"area,omitempty"`
	Station      string   `json:"station,omitempty"`
	Age          string   `json:"age,omitempty"`
	DetailURL    string   `json:"detail_url,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	FloorplanURL string   `json:"floorplan_url,omitempty"`
	Coords       *Coords  `json:"coords,omitempty"`
	Ward         string   `json:"ward,omitempty"`
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Favorite struct {
	Username   string `json:"username"`
	PropertyID string `json:"property_id"`
}

type ChatMessage struct {
	Timestamp  string `json:"timestamp"` // "2006-01-02 15:04:05"
	Sender     string `json:"sender"`
	Text       string `json:"text"`
	PropertyID string `json:"property_id"`
}

type Rating struct {
	Timestamp  string  `json:"timestamp"`
	Rater      string  `json:"rater"`
	Score      float64 `json:"rating"`
	PropertyID string  `json:"property_id"`
}

// POI is a nearby point of interest shown on the search map.
type POI struct {
	Kind   string `json:"kind"` // supermarket|convenience|bank|cafe
	Name   string `json:"name"`
	Ward   string `json:"ward,omitempty"`
	Coords Coords `json:"coords"`
}

type PropertyFilter struct {
	Ward    string
	MinRent *float64
	MaxRent *float64
	Layouts []string
	GeoOnly bool // drop rows without usable coordinates
}

type Facets struct {
	Wards   []string `json:"wards"`
	Layouts []string `json:"layouts"`
	MinRent float64  `json:"min_rent"`
	MaxRent float64  `json:"max_rent"`
}

// Route is the mapping provider's answer for one origin/destination pair.
type Route struct {
	Available       bool   `json:"available"`
	Status          string `json:"status"`
	Mode            string `json:"mode"`
	DistanceMeters  int    `json:"distance_meters,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	DistanceText    string `json:"distance_text,omitempty"`
	DurationText    string `json:"duration_text,omitempty"`
}

// DeliveryResult carries the webhook response for diagnostics only.
type DeliveryResult struct {
	Status int
	Body   string
}

func (d DeliveryResult) OK() bool { return d.Status >= 200 && d.Status < 300 }
