package observability

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var (
	currentLogLevel = LogLevelInfo
	debugEnabled    = false
)

func init() {
	// Enable debug logging if DEBUG env var is set
	if os.Getenv("DEBUG") != "" || os.Getenv("BEACON_DEBUG") != "" {
		currentLogLevel = LogLevelDebug
		debugEnabled = true
		log.Println("debug logging enabled")
	}
}

// Debug logs debug-level messages (only if DEBUG=1)
func Debug(ctx context.Context, format string, args ...interface{}) {
	if currentLogLevel <= LogLevelDebug {
		logWithContext(ctx, "DEBUG", format, args...)
	}
}

// Info logs info-level messages
func Info(ctx context.Context, format string, args ...interface{}) {
	if currentLogLevel <= LogLevelInfo {
		logWithContext(ctx, "INFO", format, args...)
	}
}

// Warn logs warning-level messages
func Warn(ctx context.Context, format string, args ...interface{}) {
	if currentLogLevel <= LogLevelWarn {
		logWithContext(ctx, "WARN", format, args...)
	}
}

// Error logs error-level messages
func Error(ctx context.Context, format string, args ...interface{}) {
	if currentLogLevel <= LogLevelError {
		logWithContext(ctx, "ERROR", format, args...)
	}
}

// logWithContext logs with trace ID if available
func logWithContext(ctx context.Context, level string, format string, args ...interface{}) {
	timestamp := time.Now().Format("2006/01/02 15:04:05.000")
	message := fmt.Sprintf(format, args...)

	// Extract trace ID from context
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		traceID := span.SpanContext().TraceID().String()
		log.Printf("%s [%s] [trace=%s] %s", timestamp, level, traceID[:8], message)
	} else {
		log.Printf("%s [%s] %s", timestamp, level, message)
	}
}

// LogError logs an error with operation context.
func LogError(ctx context.Context, operation string, err error) {
	Error(ctx, "operation failed: %s error=%v", operation, err)
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// RateLimitedLogger throttles a single recurring warning to at most
// once per period (spec §5 deadline policy: a cycle-overrun warning is
// rate-limited to once per minute). Grounded on AsyncEmitter's
// drop-on-full channel pattern (async_emitter.go): that type drops a
// message when a bounded channel is full rather than block the
// caller; this type drops a message when less than period has elapsed
// since the last one was emitted, for the same reason — a warning
// about a slow cycle must never itself slow down the next cycle.
type RateLimitedLogger struct {
	period time.Duration

	mu         sync.Mutex
	last       time.Time
	suppressed int
}

// NewRateLimitedLogger returns a logger that emits at most once per
// period; calls made within a period are counted and folded into the
// next emitted message.
func NewRateLimitedLogger(period time.Duration) *RateLimitedLogger {
	return &RateLimitedLogger{period: period}
}

// Warn emits format/args if period has elapsed since the last
// emission, otherwise it silently counts the suppressed call. now is
// passed in explicitly so callers using a virtual clock (tests, the
// orchestrator) get deterministic rate-limiting.
func (l *RateLimitedLogger) Warn(ctx context.Context, now time.Time, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() && now.Sub(l.last) < l.period {
		l.suppressed++
		return
	}

	suppressed := l.suppressed
	l.suppressed = 0
	l.last = now

	msg := fmt.Sprintf(format, args...)
	if suppressed > 0 {
		msg = fmt.Sprintf("%s (%d similar warnings suppressed)", msg, suppressed)
	}
	Warn(ctx, "%s", msg)
}
