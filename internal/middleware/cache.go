package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/bidmaster/internal/config"
    "github.com/iliyamo/bidmaster/internal/utils"
)

// captureWriter forwards the response to the client and keeps a copy of
// the body while it stays within limit.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
        cw.buf.Write(b)
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// cacheKeyFrom builds "<prefix>:<route>[:<sha1 of query>]".  The route is
// kept readable so entries can be inspected per report.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    key := cfg.Prefix + ":" + c.Path()
    if strings.ToLower(cfg.KeyStrategy) == "route" {
        return key
    }
    q := c.Request().URL.Query().Encode() // sorted, so ?a=1&b=2 and ?b=2&a=1 share an entry
    if q == "" {
        return key
    }
    sum := sha1.Sum([]byte(q))
    return fmt.Sprintf("%s:%x", key, sum[:])
}

// cachedResponse is the Redis value of one cache entry.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    return json.Marshal(cachedResponse{Status: status, Header: header, Body: body})
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    var cr cachedResponse
    if err := json.Unmarshal(bs, &cr); err != nil || cr.Status == 0 {
        return 0, nil, nil, false
    }
    if cr.Header == nil {
        cr.Header = make(http.Header)
    }
    return cr.Status, cr.Header, cr.Body, true
}

// NewRedisCache caches successful responses of the analytics endpoints.
// Status, headers and body are stored together so a hit is byte-identical
// to the original response.  Responses larger than MaxBodyBytes are served
// but not cached.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    writeCached(c, status, hdr, body)
                    return nil
                }
            } else if !errors.Is(err, redis.Nil) {
                utils.Warn("cache: redis get failed", map[string]any{"key": key, "error": err.Error()})
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
                return nil
            }
            hdr := c.Response().Header().Clone()
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
            defer cancel()
            if err := rdb.SetEx(setCtx, key, payload, ttl).Err(); err != nil {
                utils.Warn("cache: redis set failed", map[string]any{"key": key, "error": err.Error()})
            }
            return nil
        }
    }
}

func writeCached(c echo.Context, status int, hdr http.Header, body []byte) {
    for k, vals := range hdr {
        // echo sets Content-Length itself
        if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, "X-Cache") {
            continue
        }
        for _, v := range vals {
            c.Response().Header().Add(k, v)
        }
    }
    c.Response().Header().Set("X-Cache", "HIT")
    c.Response().WriteHeader(status)
    if len(body) > 0 {
        _, _ = c.Response().Write(body)
    }
}

// PurgeCache deletes every cached response under the configured prefix.
// Writes that change report data (bids, closes, imports) call it so
// the next read is fresh.  It returns the number of keys removed.
func PurgeCache(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) (int, error) {
    if !cfg.Enabled || rdb == nil {
        return 0, nil
    }
    var (
        cursor  uint64
        removed int
    )
    for {
        keys, next, err := rdb.Scan(ctx, cursor, cfg.Prefix+":*", 100).Result()
        if err != nil {
            return removed, err
        }
        if len(keys) > 0 {
            n, err := rdb.Del(ctx, keys...).Result()
            if err != nil {
                return removed, err
            }
            removed += int(n)
        }
        if next == 0 {
            return removed, nil
        }
        cursor = next
    }
}
