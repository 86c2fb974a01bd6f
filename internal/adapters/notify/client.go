// Package notify posts chat alerts to a LINE Notify style webhook.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"roomshare/internal/adapters/observability"
	"roomshare/internal/domain"
)

type Client struct {
	url   string
	token string
	hc    *http.Client
	rl    *rate.Limiter
}

func New(endpoint, token string, timeout time.Duration) (*Client, error) {
	if token == "" {
		return nil, &domain.ConfigError{Field: "LINE_NOTIFY_TOKEN"}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:   endpoint,
		token: token,
		hc:    &http.Client{Timeout: timeout},
		// LINE Notify allows 1000 calls/hour per token
		rl: rate.NewLimiter(rate.Every(time.Hour/1000), 10),
	}, nil
}

// Message is the text delivered for one new chat message.
func Message(sender, text, propertyName string) string {
	return fmt.Sprintf("%s sent a new message: %s (property: %s)", sender, text, propertyName)
}

// Notify sends one message. A non-2xx answer is returned as a result, not an
// error; err is set only when no response was received.
func (c *Client) Notify(ctx context.Context, sender, text, propertyName string) (domain.DeliveryResult, error) {
	if err := c.rl.Wait(ctx); err != nil {
		observability.ObserveNotification("dropped")
		return domain.DeliveryResult{}, err
	}
	form := url.Values{"message": {Message(sender, text, propertyName)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.DeliveryResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "roomshare/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("notify", "notify", 0, time.Since(start))
		observability.ObserveNotification("error")
		return domain.DeliveryResult{}, fmt.Errorf("notify: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("notify", "notify", resp.StatusCode, time.Since(start))

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	res := domain.DeliveryResult{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	if res.OK() {
		observability.ObserveNotification("delivered")
	} else {
		observability.ObserveNotification("rejected")
	}
	return res, nil
}
