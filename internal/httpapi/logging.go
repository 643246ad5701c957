package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zlog is an optional structured logger. If unset, the global zerolog logger is used.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &log.Logger
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("IMAGED_LOG_LEVEL"))

// SetDefaultLogLevel overrides the level applied to requests without a
// per-request override.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqLog carries the per-request level and start time for start/end lines.
type reqLog struct {
	lvl   LogLevel
	start time.Time
	rid   string
	path  string
}

func newReqLog(r *http.Request) reqLog {
	return reqLog{lvl: requestLogLevel(r), start: time.Now(), rid: middleware.GetReqID(r.Context()), path: r.URL.Path}
}

func (l reqLog) begin(mode string) {
	if l.lvl < LevelInfo {
		return
	}
	z := logger().Info().Str("path", l.path).Str("mode", mode)
	if l.rid != "" {
		z = z.Str("request_id", l.rid)
	}
	z.Msg("generate dispatched")
}

func (l reqLog) end(status int, err error) {
	if l.lvl == LevelOff || (l.lvl == LevelError && err == nil) {
		return
	}
	z := logger().Info()
	if err != nil {
		z = logger().Error().Err(err)
	}
	z = z.Int("status", status).Dur("dur", time.Since(l.start))
	if l.rid != "" {
		z = z.Str("request_id", l.rid)
	}
	z.Msg("generate end")
}

// loggingLineWriter logs complete NDJSON lines at debug level.
type loggingLineWriter struct {
	buf []byte
	rid string
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if line := string(lw.buf[:idx]); len(line) > 0 {
			logger().Debug().Str("request_id", lw.rid).Str("line", line).Msg("stream>")
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}
