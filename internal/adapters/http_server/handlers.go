package httpserver

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"roomshare/internal/app"
	"roomshare/internal/domain"
)

type Handlers struct {
	Accounts  *app.AccountService
	Auth      *Auth
	Props     *app.PropertyQueries
	Favorites *app.FavoriteService
	Conv      *app.Conversations
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/signup", h.signup)
	s.mux.Post("/v1/login", h.login)

	s.mux.Group(func(r chi.Router) {
		r.Use(h.Auth.Require)
		r.Get("/v1/properties", h.searchProperties)
		r.Get("/v1/properties/facets", h.facets)
		r.Get("/v1/properties/{id}", h.getProperty)
		r.Get("/v1/properties/{id}/distance", h.distance)
		r.Get("/v1/properties/{id}/messages", h.listMessages)
		r.Post("/v1/properties/{id}/messages", h.sendMessage)
		r.Get("/v1/properties/{id}/ratings", h.listRatings)
		r.Post("/v1/properties/{id}/ratings", h.rate)
		r.Get("/v1/pois", h.pois)
		r.Get("/v1/me/favorites", h.listFavorites)
		r.Post("/v1/me/favorites", h.addFavorite)
		r.Delete("/v1/me/favorites/{id}", h.removeFavorite)
	})
}

// ---- helpers ----

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

// flexID accepts a property id sent as a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("property_id must be a string or number")
	}
	*f = flexID(n.String())
	return nil
}

func parseFloatParam(q, name string) (*float64, error) {
	if q == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(q, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, name)
	}
	return &f, nil
}

// splitList accepts both repeated (?layout=1K&layout=2LDK) and comma separated values.
func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// ---- accounts ----

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) signup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	u, err := h.Accounts.Signup(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	u, err := h.Accounts.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tok, exp, err := h.Auth.Issue(u.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": tok, "expires_at": exp.UTC().Format(time.RFC3339), "username": u.Username})
}

// ---- properties ----

func (h *Handlers) searchProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.PropertyFilter{Ward: strings.TrimSpace(q.Get("ward")), Layouts: splitList(q["layout"])}
	var err error
	if f.MinRent, err = parseFloatParam(q.Get("min_rent"), "min_rent"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.MaxRent, err = parseFloatParam(q.Get("max_rent"), "max_rent"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.MinRent != nil && f.MaxRent != nil && *f.MinRent > *f.MaxRent {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "min_rent must not exceed max_rent")
		return
	}
	f.GeoOnly, _ = strconv.ParseBool(q.Get("geo"))

	items, err := h.Props.Search(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

func (h *Handlers) facets(w http.ResponseWriter, r *http.Request) {
	fc, err := h.Props.Facets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	p, ok, err := h.Props.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "property not found")
		return
	}

	etag, body := calcETagAndBody(p)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getProperty body")
	}
}

func (h *Handlers) distance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	route, err := h.Props.Distance(r.Context(), chi.URLParam(r, "id"), q.Get("to"), q.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (h *Handlers) pois(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Props.NearbyPOIs(r.Context(), splitList(q["ward"]), splitList(q["kind"]))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

// ---- favorites ----

func (h *Handlers) listFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := h.Props.Favorites(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

func (h *Handlers) addFavorite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PropertyID flexID `json:"property_id"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.PropertyID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "property_id is required")
		return
	}
	if err := h.Favorites.Add(r.Context(), UserFrom(r.Context()), string(in.PropertyID)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.Favorite{Username: UserFrom(r.Context()), PropertyID: string(in.PropertyID)})
}

func (h *Handlers) removeFavorite(w http.ResponseWriter, r *http.Request) {
	n, err := h.Favorites.Remove(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrPartialWrite) {
		log.Error().Err(err).Str("user", UserFrom(r.Context())).Msg("favorites rewrite interrupted")
		writeProblem(w, http.StatusBadGateway, "Data Store Error", "the favorites list may be incomplete; reload before retrying")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if n == 0 {
		writeProblem(w, http.StatusNotFound, "Not Found", "favorite not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- chat & ratings ----

func (h *Handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	items, err := h.Conv.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

func (h *Handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	msg, err := h.Conv.SendMessage(r.Context(), UserFrom(r.Context()), in.Text, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handlers) listRatings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	latest, err := h.Conv.LatestRatings(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := map[string]any{"count": len(latest), "latest": latest}
	if len(latest) > 0 {
		resp["average"] = app.Average(latest)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) rate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Rating *float64 `json:"rating"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Rating == nil {
		writeError(w, r, fmt.Errorf("%w: rating is required", domain.ErrInvalidInput))
		return
	}
	out, err := h.Conv.Rate(r.Context(), UserFrom(r.Context()), *in.Rating, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
