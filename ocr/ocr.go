// Package ocr implements C3: an adapter over a third-party OCR service,
// distinguishing transient (retryable) failures from permanent ones so
// callers in ingestion know whether to consume quota on
// failure (spec §4.7: "Order: OCR first, then debit on success").
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gottino/rmirror-cloud/cmn/errs"
)

// PageResult is the per-page OCR outcome. A blob may render multiple
// pages (spec §4.7: "consume_quota for the reported page count").
type PageResult struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type Result struct {
	Pages []PageResult `json:"pages"`
}

// Client is the C3 contract.
type Client interface {
	// Recognize runs OCR over the given blob. Returns a TransientError for
	// network/5xx/timeout failures (caller should retry/requeue) and a
	// PermanentError for content the service will never be able to parse
	// (caller transitions the page to `failed` without retry).
	Recognize(ctx context.Context, blob []byte, contentType string) (*Result, error)
}

// TransientError indicates the caller may retry (spec §4.6 "Retryable
// error kinds: network, 5xx, rate-limit").
type TransientError struct{ cause error }

func (e *TransientError) Error() string { return fmt.Sprintf("ocr: transient: %v", e.cause) }
func (e *TransientError) Unwrap() error { return e.cause }

// PermanentError indicates the blob itself cannot be processed; retrying
// will not help.
type PermanentError struct{ cause error }

func (e *PermanentError) Error() string { return fmt.Sprintf("ocr: permanent: %v", e.cause) }
func (e *PermanentError) Unwrap() error { return e.cause }

type httpClient struct {
	endpoint string
	apiKey   string
	hc       *http.Client
}

// New builds an HTTP-backed OCR client with the spec-mandated 60s default
// timeout (spec §5 "Cancellation and timeouts: OCR 60 s").
func New(endpoint, apiKey string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *httpClient) Recognize(ctx context.Context, blob []byte, contentType string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/recognize", bytes.NewReader(blob))
	if err != nil {
		return nil, &TransientError{cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransientError{cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out Result
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, &TransientError{cause: err}
		}
		return &out, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{cause: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return nil, &PermanentError{cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
}

// KindOf classifies an ocr error into the shared errs taxonomy, for
// callers that want a single switch across every subsystem's errors.
func KindOf(err error) errs.Kind {
	switch err.(type) {
	case *TransientError:
		return errs.KindTransient
	case *PermanentError:
		return errs.KindPermanent
	default:
		return errs.KindUnknown
	}
}
