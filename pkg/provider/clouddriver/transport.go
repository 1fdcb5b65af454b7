package clouddriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"github.com/cuemby/swarmd/pkg/swarmerr"
)

// httpTransport wraps the platform's base URL, token, and retry policy.
// Kept separate from Driver so it can be unit tested against an
// httptest.Server without constructing a full Driver.
type httpTransport struct {
	baseURL    string
	token      string
	httpClient *http.Client
	bo         BackoffConfig
}

func newHTTPTransport(cfg Config) *httpTransport {
	return &httpTransport{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		bo:         cfg.Backoff,
	}
}

// do issues method against path with an optional JSON body, decoding a
// successful JSON response into out (may be nil for no-body responses).
// Retryable failures (429, 5xx, transport errors) are retried per the
// configured backoff policy; everything else returns immediately.
func (t *httpTransport) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return swarmerr.Wrap(swarmerr.InternalKind, "failed to encode request", err)
		}
		payload = b
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.bo.InitialDelay
	policy.Multiplier = t.bo.Multiplier
	policy.MaxInterval = t.bo.MaxDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		respBody, status, err := t.once(ctx, method, path, payload)
		if err != nil {
			if !swarmerr.Retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		mapped := statusToErr(status, respBody)
		if mapped != nil {
			if !mapped.Retryable {
				return struct{}{}, backoff.Permanent(mapped)
			}
			return struct{}{}, mapped
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return struct{}{}, backoff.Permanent(
					swarmerr.Wrap(swarmerr.InternalKind, "failed to decode response", err))
			}
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(t.bo.MaxRetries)))

	return err
}

func (t *httpTransport) once(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, 0, swarmerr.Wrap(swarmerr.InternalKind, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, 0, swarmerr.Wrap(swarmerr.InternalKind, "transport error", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, swarmerr.Wrap(swarmerr.InternalKind, "failed to read response body", err)
	}
	return respBody, resp.StatusCode, nil
}

// statusToErr translates an HTTP status code to a neutral *swarmerr.Error,
// or nil for a success status.
func statusToErr(status int, body []byte) *swarmerr.Error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := fmt.Sprintf("platform responded %d", status)
	if len(body) > 0 && len(body) < 2048 {
		msg = fmt.Sprintf("%s: %s", msg, string(body))
	}

	switch {
	case status == http.StatusUnauthorized:
		return swarmerr.New(swarmerr.AuthKind, msg)
	case status == http.StatusNotFound:
		return swarmerr.New(swarmerr.NotFoundKind, msg)
	case status == http.StatusTooManyRequests:
		return swarmerr.New(swarmerr.RateLimitedKind, msg)
	case status >= 500:
		return swarmerr.New(swarmerr.InternalKind, msg)
	default:
		return swarmerr.New(swarmerr.ApiRequestKind, msg)
	}
}
