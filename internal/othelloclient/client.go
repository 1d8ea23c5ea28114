package othelloclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

// APIError is a non-2xx reply from the HTTP API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("othello api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("othello api error: status=%d body=%s", e.Status, e.Message)
}

// Client reads rooms, leaderboards and board images from the HTTP API.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", nil)
}

func (c *Client) ListRooms(ctx context.Context) ([]othellodto.LobbyRoom, error) {
	var rooms []othellodto.LobbyRoom
	if err := c.getJSON(ctx, "/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) RoomState(ctx context.Context, roomID string) (*othellodto.RoomState, error) {
	var st othellodto.RoomState
	if err := c.getJSON(ctx, "/rooms/"+url.PathEscape(roomID), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Leaderboard returns the top n ratings; n <= 0 uses the server default.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]othellodto.RatingRecord, error) {
	path := "/leaderboard"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	var rows []othellodto.RatingRecord
	if err := c.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) BoardPNG(ctx context.Context, roomID string) ([]byte, error) {
	return c.get(ctx, "/rooms/"+url.PathEscape(roomID)+"/board.png")
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get retries transport errors and 5xx replies with backoff. Every API route is a read.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			apiErr := &APIError{Status: status}
			var body othellodto.ErrorEvent
			if json.Unmarshal(resp.Body(), &body) == nil && body.Code != "" {
				apiErr.Code, apiErr.Message = body.Code, body.Message
			} else {
				apiErr.Message = truncate(string(resp.Body()), 512)
			}
			if !shouldRetryStatus(status) {
				return nil, apiErr
			}
			lastErr = apiErr
		} else {
			return append([]byte(nil), resp.Body()...), nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt, 100*time.Millisecond)); err != nil {
			return nil, lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles base per attempt, capped at 32x.
func backoffDuration(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
