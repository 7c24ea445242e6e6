package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request health counters, shared with the health handlers.
const (
	KeyReqTotal  = "health:global:req_total"
	KeyReqErrors = "health:global:req_errors"
	KeyResTime   = "health:global:res_time_total"
	KeyResCount  = "health:global:res_count"
	KeyStartTime = "health:global:start_time"
	KeyLastReq   = "health:global:last_request"
	KeyErrorLog  = "health:global:error_log"

	errorLogSize = 50
)

var untrackedPrefixes = []string{"/health", "/metrics", "/favicon", "/reset"}

func tracked(path string) bool {
	if path == "/" {
		return false
	}
	for _, p := range untrackedPrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return true
}

type requestEntry struct {
	Time    time.Time `json:"time"`
	IP      string    `json:"ip,omitempty"`
	Path    string    `json:"path"`
	Method  string    `json:"method"`
	Status  int       `json:"status,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// HealthMarker keeps request counters, average latency and a capped log of
// 5xx responses in Redis. Operational endpoints are not counted. Redis
// failures never fail the request.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !tracked(c.Path()) {
			return c.Next()
		}

		start := time.Now()
		ctx := context.Background()
		last, _ := json.Marshal(requestEntry{Time: start, IP: c.IP(), Path: c.OriginalURL(), Method: c.Method()})
		_, _ = rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, KeyLastReq, last, 0)
			p.Incr(ctx, KeyReqTotal)
			return nil
		})

		if err := c.Next(); err != nil {
			// the error handler writes the final status before it is counted
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}

		status := c.Response().StatusCode()
		_, _ = rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.Incr(ctx, KeyResCount)
			p.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds()))
			if status >= fiber.StatusInternalServerError {
				entry, _ := json.Marshal(requestEntry{
					Time:    time.Now(),
					Path:    c.OriginalURL(),
					Method:  c.Method(),
					Status:  status,
					TraceID: GetTraceID(c),
				})
				p.Incr(ctx, KeyReqErrors)
				p.LPush(ctx, KeyErrorLog, entry)
				p.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1)
			}
			return nil
		})
		return nil
	}
}
