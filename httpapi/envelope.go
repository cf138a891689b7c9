package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gottino/rmirror-cloud/cmn/errs"
)

// errorEnvelope mirrors spec §6: `{ "detail": string | array }`.
type errorEnvelope struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusForKind maps the §7 error taxonomy onto HTTP status codes.
func statusForKind(k errs.Kind) int {
	switch k {
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	case errs.KindQuotaExhausted:
		return http.StatusOK // graceful degradation, §7 "Ingestion returns success"
	case errs.KindAuth:
		return http.StatusUnauthorized
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindPermanent:
		return http.StatusUnprocessableEntity
	case errs.KindCapExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
