// Package httpapi implements the spec §6 HTTP surface: auth, quota
// status, ingestion, notebook listing, and sync-trigger endpoints, all
// versioned under /v1.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gottino/rmirror-cloud/cmn/errs"
	"github.com/gottino/rmirror-cloud/domain"
	"github.com/gottino/rmirror-cloud/ingestion"
	"github.com/gottino/rmirror-cloud/notebookstore"
	"github.com/gottino/rmirror-cloud/pagestore"
	"github.com/gottino/rmirror-cloud/quota"
	"github.com/gottino/rmirror-cloud/syncrecord"
	"github.com/gottino/rmirror-cloud/telemetry"
	"github.com/gottino/rmirror-cloud/workqueue"
)

type Server struct {
	Tokens    *TokenIssuer
	Ingestion *ingestion.Service
	Quota     quota.Ledger
	Pages     pagestore.Store
	Notebooks notebookstore.Store
	Records   syncrecord.Store
	Queue     workqueue.Queue
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/agent-token", s.handleAgentToken)
	mux.Handle("GET /v1/quota/status", s.Tokens.RequireAuth(http.HandlerFunc(s.handleQuotaStatus)))
	mux.Handle("POST /v1/processing/rm-file", s.Tokens.RequireAuth(http.HandlerFunc(s.handleUpload)))
	mux.Handle("POST /v1/processing/metadata/update", s.Tokens.RequireAuth(http.HandlerFunc(s.handleMetadataUpdate)))
	mux.Handle("GET /v1/notebooks/", s.Tokens.RequireAuth(http.HandlerFunc(s.handleListNotebooks)))
	mux.Handle("GET /v1/notebooks/{id}/pages", s.Tokens.RequireAuth(http.HandlerFunc(s.handleListPages)))
	mux.Handle("POST /v1/sync/initial", s.Tokens.RequireAuth(http.HandlerFunc(s.handleSyncInitial)))
	mux.Handle("POST /v1/sync/notebook/{id}", s.Tokens.RequireAuth(http.HandlerFunc(s.handleSyncNotebook)))

	return telemetry.WrapHandler("rmirror-cloud-api", withRateLimitHeaders(mux))
}

// handleAgentToken exchanges a short OAuth session (assumed already
// validated upstream by whatever terminates the OAuth redirect) for a
// 30-day agent token. The session subject is trusted from the request
// body here since the OAuth dance itself is out of scope for this
// surface (spec §6 only specifies the exchange contract).
func (s *Server) handleAgentToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}
	token, err := s.Tokens.Issue(body.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleQuotaStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	snap, err := s.Quota.Observe(r.Context(), userID, domain.QuotaOCRPages)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load quota")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("blob")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing blob")
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read blob")
		return
	}

	pageNumber, _ := strconv.Atoi(r.FormValue("page_number"))
	out, err := s.Ingestion.Upload(r.Context(), ingestion.Upload{
		UserID:       userID,
		NotebookUUID: r.FormValue("notebook_uuid"),
		PageUUID:     r.FormValue("page_uuid"),
		PageNumber:   pageNumber,
		Blob:         blob,
		ContentType:  r.FormValue("content_type"),
		Destinations: splitCSV(r.FormValue("destinations")),
	})
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			writeError(w, statusForKind(e.Kind), e.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetadataUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())

	var body struct {
		NotebookUUID string   `json:"notebook_uuid"`
		VisibleName  string   `json:"visible_name"`
		DocumentType string   `json:"document_type"`
		Destinations []string `json:"destinations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	out, err := s.Ingestion.UpdateMetadata(r.Context(), ingestion.MetadataUpdate{
		UserID:       userID,
		NotebookUUID: body.NotebookUUID,
		VisibleName:  body.VisibleName,
		DocumentType: body.DocumentType,
		Destinations: body.Destinations,
	})
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			writeError(w, statusForKind(e.Kind), e.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	notebooks, err := s.Notebooks.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list notebooks")
		return
	}
	writeJSON(w, http.StatusOK, notebooks)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	notebookUUID := r.PathValue("id")

	nb, err := s.Notebooks.Get(r.Context(), userID, notebookUUID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if nb == nil {
		writeError(w, http.StatusNotFound, "notebook not found")
		return
	}

	pages, err := s.Pages.List(r.Context(), notebookUUID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list pages")
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleSyncInitial(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	var body struct {
		PageLimit int  `json:"page_limit"`
		Force     bool `json:"force"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	item := workqueueBootstrapItem(userID)
	if err := s.Queue.Enqueue(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, "could not enqueue bootstrap")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (s *Server) handleSyncNotebook(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	notebookUUID := r.PathValue("id")

	nb, err := s.Notebooks.Get(r.Context(), userID, notebookUUID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if nb == nil {
		writeError(w, http.StatusNotFound, "notebook not found")
		return
	}

	item := workqueue.NewMetadataSyncItem(userID, notebookUUID, []string{domain.DestinationAll})
	if err := s.Queue.Enqueue(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, "could not enqueue sync")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func workqueueBootstrapItem(userID string) *domain.WorkItem {
	return &domain.WorkItem{
		UserID:    userID,
		Kind:      domain.WorkFull,
		TargetRef: userID,
		ItemKind:  "notebook_container",
		Priority:  domain.ContainerCreationPriority,
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// withRateLimitHeaders attaches the §6 rate-limit headers to every
// response. Actual limiting happens inside ingestion.Service; this layer
// only surfaces the informational headers uniformly.
func withRateLimitHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(ingestion.UploadsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(ingestion.UploadsPerMinute))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}
