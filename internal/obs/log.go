package obs

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

type ctxKey string

const (
	requestIDKey ctxKey = "obs_request_id"
	visitorIDKey ctxKey = "obs_visitor_id"
)

// WithRequestID attaches the request identifier to ctx for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithVisitorID attaches the browser visitor id to ctx for logging.
func WithVisitorID(ctx context.Context, visitorID string) context.Context {
	if visitorID == "" {
		return ctx
	}
	return context.WithValue(ctx, visitorIDKey, visitorID)
}

// VisitorIDFromContext returns the visitor id, if any.
func VisitorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(visitorIDKey).(string)
	return v
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	write(entry)
}

// LogEvent writes an info-level event enriched with request context.
func LogEvent(ctx context.Context, event string, fields map[string]any) {
	write(entry(ctx, "info", event, fields))
}

// LogError writes an error-level event. A nil err is logged without an error field.
func LogError(ctx context.Context, event string, err error, fields map[string]any) {
	e := entry(ctx, "error", event, fields)
	if err != nil {
		e["error"] = err.Error()
	}
	write(e)
}

func entry(ctx context.Context, level, event string, fields map[string]any) map[string]any {
	e := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"event": event,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		e["request_id"] = rid
	}
	if vid := VisitorIDFromContext(ctx); vid != "" {
		e["visitor_id"] = vid
	}
	if len(fields) > 0 {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		e["fields"] = copied
	}
	return e
}

func write(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
