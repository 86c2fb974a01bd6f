package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"roomshare/internal/domain"
)

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError turns a service error into a problem response. Store failures
// become a notice for the user.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		tnf *domain.TableNotFoundError
		rse *domain.RemoteStoreError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidRating), errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, domain.ErrUsernameTaken):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "no such record")
	case errors.Is(err, domain.ErrUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
	case errors.As(err, &tnf):
		log.Error().Err(err).Str("tab", tnf.Tab).Str("path", r.URL.Path).Msg("configured tab is missing")
		writeProblem(w, http.StatusInternalServerError, "Data Store Misconfigured", "a required table is missing: "+tnf.Tab)
	case errors.Is(err, domain.ErrPartialWrite):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("tab rewrite interrupted")
		writeProblem(w, http.StatusBadGateway, "Data Store Error", "the list may be incomplete; reload before retrying")
	case errors.As(err, &rse):
		log.Error().Err(err).Str("op", rse.Op).Int("upstream_status", rse.Status).Str("path", r.URL.Path).Msg("data store call failed")
		writeProblem(w, http.StatusBadGateway, "Data Store Error", "the data store could not be reached; reload before trying again")
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "the data store did not answer in time")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
