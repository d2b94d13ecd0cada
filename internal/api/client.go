// Package api is the HTTP client of the reservation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"salas/internal/metrics"
	"salas/internal/view"
)

// Status texts written around every call.
const (
	MsgLoading = "Cargando..."
	MsgDone    = "Listo"
	MsgOffline = "Sin conexión con el servidor"
	MsgBadBody = "Respuesta inválida del servidor"
)

const maxRawDetail = 200

// Error is a failed backend call. Status is 0 for transport failures.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	freshKey
)

// WithRequestID attaches the id sent as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id attached to ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Fresh marks ctx so cached reference data is fetched again.
func Fresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey, true)
}

func isFresh(ctx context.Context) bool {
	v, _ := ctx.Value(freshKey).(bool)
	return v
}

// Client calls the backend and translates every outcome into a status line.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration

	logger zerolog.Logger
}

// New constructs a client for baseURL. A non-positive timeout means 10s.
func New(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// UseRedisCache configures optional Redis caching for reference GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// Do performs one call. body is sent as JSON when non-nil; a non-empty response
// is decoded into out (an empty one leaves out untouched). status, when given,
// shows MsgLoading before the round trip and MsgDone or the error detail after.
func (c *Client) Do(ctx context.Context, method, path string, body any, status view.Status, out any) error {
	setStatus(status, view.StatusInfo, MsgLoading)
	err := c.do(ctx, method, path, body, out)
	if err != nil {
		setStatus(status, view.StatusError, err.Error())
		return err
	}
	setStatus(status, view.StatusOK, MsgDone)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.addHeaders(ctx, req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncAPIRequest(method, 0)
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("backend unreachable")
		return &Error{Status: 0, Detail: MsgOffline}
	}
	defer resp.Body.Close()
	metrics.IncAPIRequest(method, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Detail: MsgOffline}
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Detail: detailOf(resp.StatusCode, data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("decode response")
		return &Error{Status: resp.StatusCode, Detail: MsgBadBody}
	}
	return nil
}

func (c *Client) addHeaders(ctx context.Context, req *http.Request) {
	id := RequestID(ctx)
	if id == "" {
		id = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", id)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

// detailOf extracts a readable message: detail (string or list of {msg}),
// then message, then the raw text for non-JSON bodies, then "Error <status>".
func detailOf(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && gjson.ValidBytes(trimmed) {
		res := gjson.ParseBytes(trimmed)
		detail := res.Get("detail")
		if detail.Type == gjson.String && detail.String() != "" {
			return detail.String()
		}
		if detail.IsArray() {
			var msgs []string
			for _, item := range detail.Array() {
				if m := item.Get("msg").String(); m != "" {
					msgs = append(msgs, m)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		if msg := res.Get("message"); msg.Type == gjson.String && msg.String() != "" {
			return msg.String()
		}
		if res.Type == gjson.String && res.String() != "" {
			return res.String()
		}
	} else if len(trimmed) > 0 {
		raw := string(trimmed)
		if len(raw) > maxRawDetail {
			n := maxRawDetail
			for n > 0 && !utf8.RuneStart(raw[n]) {
				n--
			}
			raw = raw[:n]
		}
		return raw
	}
	return fmt.Sprintf("Error %d", status)
}

func setStatus(status view.Status, kind view.StatusKind, text string) {
	if status != nil {
		status.SetStatus(kind, text)
	}
}

func (c *Client) getCached(ctx context.Context, key, path string, status view.Status, out any) error {
	if !isFresh(ctx) && c.readCache(ctx, key, out) {
		metrics.IncCacheLookup(true)
		setStatus(status, view.StatusInfo, MsgLoading)
		setStatus(status, view.StatusOK, MsgDone)
		return nil
	}
	if c.redis != nil {
		metrics.IncCacheLookup(false)
	}
	if err := c.Do(ctx, http.MethodGet, path, nil, status, out); err != nil {
		return err
	}
	c.writeCache(ctx, key, out)
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) invalidate(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

// PingCache checks the optional cache backend; nil when no cache is configured.
func (c *Client) PingCache(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
