package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/config"
)

// bodyCapture tees the response body while it is written to the
// client, up to a size limit, so a successful listing can be stored
// after the handler returns.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int
}

func (w *bodyCapture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	if w.buf.Len() < w.limit {
		remain := w.limit - w.buf.Len()
		if len(b) <= remain {
			w.buf.Write(b)
		} else {
			w.buf.Write(b[:remain])
		}
	}
	return w.ResponseWriter.Write(b)
}

// NewListCache returns a Redis-backed response cache for the shift
// listing.  Listings tolerate slight staleness, so GETs are served
// from Redis for a short TTL.  The key includes the caller's role:
// volunteers only see published shifts while staff see everything, and
// the two views must never share an entry.  With caching disabled or
// Redis unreachable the middleware is a pass-through.
func NewListCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg.Prefix, c)

			if body, err := rdb.Get(ctx, key).Bytes(); err == nil && len(body) > 0 {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, body)
			}

			w := &bodyCapture{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = w
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if w.status == http.StatusOK && w.buf.Len() > 0 && w.buf.Len() <= cfg.MaxBodyBytes {
				// Detached context: the request may already be done.
				_ = rdb.SetEx(context.Background(), key, w.buf.Bytes(), cfg.TTL).Err()
			}
			return nil
		}
	}
}

// cacheKey hashes role, route and query into a stable key.  The
// username is deliberately absent: within a role the listing is
// identical for everyone.
func cacheKey(prefix string, c echo.Context) string {
	role, _ := c.Get("role").(string)
	if role == "" {
		role = "anon"
	}
	tail := strings.Join([]string{role, c.Path(), c.Request().URL.RawQuery}, ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", prefix, sum[:])
}
