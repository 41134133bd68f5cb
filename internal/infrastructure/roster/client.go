// Package roster reads the external school roster: the set of user ids that
// are currently enrolled and allowed to register.
package roster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/metrics"
	"github.com/school-notify-api/internal/pkg/retry"
)

// Source fetches the full list of roster ids.
type Source interface {
	FetchIDs(ctx context.Context) ([]string, error)
}

// HTTPSource calls the school's GetUsers endpoint, a multipart POST carrying
// the api_key field.
type HTTPSource struct {
	httpClient *http.Client
	url        string
	apiKey     string
	policy     retry.Policy
}

type HTTPOptions struct {
	URL         string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	return &HTTPSource{
		httpClient: &http.Client{Timeout: opts.Timeout},
		url:        opts.URL,
		apiKey:     opts.APIKey,
		policy: retry.Policy{
			Name:      "roster-fetch",
			Attempts:  opts.MaxAttempts,
			BaseDelay: opts.RetryDelay,
			Retryable: isRetryable,
		},
	}
}

// statusError is a non-2xx answer from the roster API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("roster api status %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	// Malformed bodies will not fix themselves on retry.
	var de *decodeError
	return !errors.As(err, &de)
}

func (s *HTTPSource) FetchIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		var err error
		ids, err = s.fetch(ctx)
		return err
	})
	if err != nil {
		metrics.RosterFetches.WithLabelValues("api", "error").Inc()
		return nil, fmt.Errorf("fetch roster: %v: %w", err, domain.ErrUpstream)
	}
	metrics.RosterFetches.WithLabelValues("api", "ok").Inc()
	return ids, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("api_key", s.apiKey); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(respBody), 200)}
	}
	return Decode(respBody)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
