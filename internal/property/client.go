// Package property talks to the listing service. The chat core only ever
// needs a listing summary and its landlord to open a room.
package property

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/homehive/chat-service/internal/apperr"
)

// Summary is the listing snapshot the room store denormalizes at creation.
type Summary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	CoverImage     string `json:"cover_image"`
	LandlordID     string `json:"landlord_id"`
	LandlordName   string `json:"landlord_name"`
	LandlordAvatar string `json:"landlord_avatar"`
}

type Directory interface {
	Lookup(ctx context.Context, propertyID string) (*Summary, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "property-service",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: tr, Timeout: timeout},
		breaker: cb,
	}
}

func (c *Client) Lookup(ctx context.Context, propertyID string) (*Summary, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.lookup(ctx, propertyID)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Summary), nil
}

func (c *Client) lookup(ctx context.Context, propertyID string) (*Summary, error) {
	endpoint := c.baseURL + "/api/properties/" + url.PathEscape(propertyID)

	var summary *Summary
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(apperr.ErrNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("property service: status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("property service: status %d", resp.StatusCode))
		}

		var s Summary
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return backoff.Permanent(err)
		}
		summary = &s
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return summary, nil
}
