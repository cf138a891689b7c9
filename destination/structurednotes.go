package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gottino/rmirror-cloud/cmn/errs"
)

// structuredNotesAdapter syncs pages/containers to a third-party
// structured-notes API. It is grounded in the same request/response shape
// as a local notes service, re-expressed here as an outbound HTTP client
// since the notes store lives behind someone else's API rather than our
// own database.
type structuredNotesAdapter struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func newStructuredNotesAdapter(cfg Config) (Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("structurednotes: base_url required")
	}
	return &structuredNotesAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// RegisterStructuredNotes wires the adapter into a Registry. Called once
// at startup.
func RegisterStructuredNotes(r *Registry) {
	r.Register("structurednotes", newStructuredNotesAdapter)
}

func (a *structuredNotesAdapter) Name() string { return "structurednotes" }

func (a *structuredNotesAdapter) Capabilities() []Capability {
	return []Capability{CapCreate, CapUpdate, CapDelete, CapDedupeCheck, CapValidate}
}

type noteDoc struct {
	ParentID    string            `json:"parent_id,omitempty"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	ContentHash string            `json:"content_hash"`
	Properties  map[string]string `json:"properties,omitempty"`
}

type noteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (a *structuredNotesAdapter) SyncItem(ctx context.Context, item Item) (Result, error) {
	doc := noteDoc{
		ParentID:    item.FolderPath,
		Title:       item.Title,
		Body:        item.Content,
		ContentHash: item.ContentHash,
		Properties:  item.Metadata,
	}
	resp, err := a.do(ctx, http.MethodPost, "/v1/notes", doc)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}, err
	}
	return Result{Status: StatusOK, ExternalID: resp.ID}, nil
}

func (a *structuredNotesAdapter) UpdateItem(ctx context.Context, externalID string, item Item) (Result, error) {
	doc := noteDoc{
		Title:       item.Title,
		Body:        item.Content,
		ContentHash: item.ContentHash,
		Properties:  item.Metadata,
	}
	resp, err := a.do(ctx, http.MethodPut, "/v1/notes/"+externalID, doc)
	if err != nil {
		if kErr, ok := err.(*errs.Error); ok && kErr.Status == http.StatusNotFound {
			return Result{Status: StatusGone}, nil
		}
		return Result{Status: StatusFailed, Err: err}, err
	}
	return Result{Status: StatusOK, ExternalID: resp.ID}, nil
}

func (a *structuredNotesAdapter) DeleteItem(ctx context.Context, externalID string) (Result, error) {
	_, err := a.do(ctx, http.MethodDelete, "/v1/notes/"+externalID, nil)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}, err
	}
	return Result{Status: StatusOK}, nil
}

func (a *structuredNotesAdapter) CheckDuplicate(ctx context.Context, contentHash string) (string, error) {
	resp, err := a.do(ctx, http.MethodGet, "/v1/notes/by-hash/"+contentHash, nil)
	if err != nil {
		if kErr, ok := err.(*errs.Error); ok && kErr.Status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	return resp.ID, nil
}

func (a *structuredNotesAdapter) ValidateConnection(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodGet, "/v1/health", nil)
	return err
}

func (a *structuredNotesAdapter) do(ctx context.Context, method, path string, body any) (*noteResponse, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, r)
	if err != nil {
		return nil, errs.New(errs.KindTransient, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindTransient, err)
	}
	defer resp.Body.Close()

	return classifyAndDecode(resp)
}

func classifyAndDecode(resp *http.Response) (*noteResponse, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out noteResponse
		if resp.ContentLength != 0 {
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return nil, errs.New(errs.KindTransient, err)
			}
		}
		return &out, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &errs.Error{Kind: errs.KindRateLimited, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &errs.Error{Kind: errs.KindAuth, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &errs.Error{Kind: errs.KindValidation, Status: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &errs.Error{Kind: errs.KindValidation, Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &errs.Error{Kind: errs.KindTransient, Status: resp.StatusCode}
	default:
		return nil, &errs.Error{Kind: errs.KindUnknown, Status: resp.StatusCode}
	}
}
