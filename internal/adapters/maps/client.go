// Package maps wraps the Google Geocoding and Distance Matrix JSON APIs.
package maps

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"roomshare/internal/adapters/observability"
	"roomshare/internal/domain"
)

var Modes = []string{"walking", "driving", "bicycling", "transit"}

const DefaultMode = "walking"

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int, timeout time.Duration) (*Client, error) {
	if key == "" {
		return nil, &domain.ConfigError{Field: "MAPS_API_KEY"}
	}
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: timeout},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ValidMode reports whether mode is a travel mode the API understands.
func ValidMode(mode string) bool {
	for _, m := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error_message"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type matrixResponse struct {
	Status string `json:"status"`
	Error  string `json:"error_message"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Geocode returns the first match for address, or nil when there is none.
func (c *Client) Geocode(ctx context.Context, address string) (*domain.Coords, error) {
	q := url.Values{"address": {address}, "language": {"ja"}, "region": {"jp"}, "key": {c.key}}
	var out geocodeResponse
	if err := c.get(ctx, "geocode", c.base+"/geocode/json?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	switch out.Status {
	case "OK":
		if len(out.Results) == 0 {
			return nil, nil
		}
		loc := out.Results[0].Geometry.Location
		return &domain.Coords{Lat: loc.Lat, Lon: loc.Lng}, nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: geocode %s %s", domain.ErrUnavailable, out.Status, out.Error)
	}
}

// Distance asks for one origin/destination pair. A route the provider cannot
// compute comes back with Available=false and the provider's status.
func (c *Client) Distance(ctx context.Context, from, to domain.Coords, mode string) (domain.Route, error) {
	if mode == "" {
		mode = DefaultMode
	}
	if !ValidMode(mode) {
		return domain.Route{}, fmt.Errorf("%w: travel mode %q", domain.ErrInvalidInput, mode)
	}
	q := url.Values{
		"origins":      {latLng(from)},
		"destinations": {latLng(to)},
		"mode":         {mode},
		"language":     {"ja"},
		"key":          {c.key},
	}
	if mode == "transit" {
		q.Set("departure_time", "now")
	}
	var out matrixResponse
	if err := c.get(ctx, "distancematrix", c.base+"/distancematrix/json?"+q.Encode(), &out); err != nil {
		return domain.Route{}, err
	}
	r := domain.Route{Mode: mode, Status: out.Status}
	if out.Status != "OK" {
		if out.Status == "REQUEST_DENIED" || out.Status == "OVER_QUERY_LIMIT" {
			return r, fmt.Errorf("%w: distance %s %s", domain.ErrUnavailable, out.Status, out.Error)
		}
		return r, nil
	}
	if len(out.Rows) == 0 || len(out.Rows[0].Elements) == 0 {
		r.Status = "ZERO_RESULTS"
		return r, nil
	}
	el := out.Rows[0].Elements[0]
	r.Status = el.Status
	if el.Status != "OK" {
		return r, nil
	}
	r.Available = true
	r.DistanceMeters = el.Distance.Value
	r.DistanceText = el.Distance.Text
	r.DurationSeconds = el.Duration.Value
	r.DurationText = el.Duration.Text
	return r, nil
}

func latLng(c domain.Coords) string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 6, 64)
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "roomshare/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("maps", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
			if i < 2 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}
		observability.ObserveExternal("maps", endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%w: maps %d", domain.ErrUnavailable, resp.StatusCode)
			if i < 2 && sleepCtx(ctx, wait) {
				continue
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("maps: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	if lastErr == nil {
		lastErr = errors.New("maps: no attempt made")
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	return base + time.Duration(0.5*float64(b[0])/255.0*float64(base))
}
