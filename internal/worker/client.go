// Package worker talks to the external image generation worker over HTTP.
//
// A job is POSTed as JSON to {base}/v1/generation. The worker answers with
// either a single JSON object {"result": [...]} or an NDJSON stream of
// lines {"type":"progress"|"done"|"error", ...}.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"imaged/internal/job"
	"imaged/pkg/types"
)

const (
	generatePath = "/v1/generation"
	pingPath     = "/ping"
	ndjsonType   = "application/x-ndjson"
)

// Client implements dispatch.Worker against a running worker process.
type Client struct {
	baseURL        string
	apiKey         string
	reqTimeout     time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
}

// New constructs a worker client. reqTimeout bounds a whole generation
// (0 leaves it to the caller's context); connectTimeout bounds dialing.
func New(baseURL, apiKey string, reqTimeout, connectTimeout time.Duration) *Client {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: every request carries its deadline in its context.
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		reqTimeout:     reqTimeout,
		connectTimeout: connectTimeout,
		httpClient:     &http.Client{Transport: tr, Timeout: 0},
	}
}

// BaseURL returns the worker endpoint the client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

// line is one NDJSON record of the worker's streaming response.
type line struct {
	Type     types.StreamEventType `json:"type"`
	Progress *types.Progress       `json:"progress,omitempty"`
	Result   []string              `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Error is a failure reported by the worker itself, either as a non-2xx
// response or as an error line in the stream.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("worker http %d: %s", e.Status, e.Message)
	}
	return "worker error: " + e.Message
}

// Generate sends j to the worker and returns the artifact URLs. onProgress,
// when non-nil, receives every progress line in order; an error from it
// aborts the request.
func (c *Client) Generate(ctx context.Context, j job.GenerationJob, onProgress func(types.Progress) error) ([]string, error) {
	if c.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", ndjsonType+", application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != ndjsonType {
		var out struct {
			Result []string `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("decode worker response: %w", err)
		}
		return out.Result, nil
	}
	return c.readStream(ctx, resp.Body, onProgress)
}

func (c *Client) readStream(ctx context.Context, body io.Reader, onProgress func(types.Progress) error) ([]string, error) {
	r := bufio.NewReader(body)
	for {
		raw, err := r.ReadString('\n')
		if s := strings.TrimSpace(raw); s != "" {
			var ln line
			if jerr := json.Unmarshal([]byte(s), &ln); jerr != nil {
				log.Debug().Str("worker", c.baseURL).Str("line", s).Msg("worker_unknown_stream_line")
			} else {
				switch ln.Type {
				case types.EventProgress:
					if onProgress != nil && ln.Progress != nil {
						if cbErr := onProgress(*ln.Progress); cbErr != nil {
							return nil, cbErr
						}
					}
				case types.EventDone:
					return ln.Result, nil
				case types.EventError:
					return nil, &Error{Message: ln.Error}
				default:
					log.Debug().Str("worker", c.baseURL).Str("type", string(ln.Type)).Msg("worker_unknown_stream_line")
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil, errors.New("worker stream ended without a terminal line")
			}
			log.Warn().Err(err).Str("worker", c.baseURL).Msg("worker_stream_read_error")
			return nil, err
		}
	}
}

// Ping checks that the worker answers on its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*c.connectTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pingPath, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Message: "ping failed"}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
