package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"racebot/internal/races"
	"racebot/internal/registry"
	"racebot/internal/util"
)

// Races is the part of the registry the HTTP surface reads.
type Races interface {
	Races() []registry.RaceView
	LiveRaces() []registry.LiveView
	Export(ctx context.Context, raceID int64) ([]byte, string, error)
}

type handler struct {
	races  Races
	secret string
	log    zerolog.Logger
}

// Router serves health, the race list and the signed CSV export.
func Router(rs Races, exportSecret string, log zerolog.Logger) http.Handler {
	h := &handler{races: rs, secret: exportSecret, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/races", h.list)
	// CSV export (link with token = HMAC)
	r.Get("/export/{file}", h.export)
	return r
}

func New(addr string, rs Races, exportSecret string, log zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           Router(rs, exportSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ExportURL is the public download link of a race's current standings.
func ExportURL(baseURL, secret string, raceID int64) string {
	id := strconv.FormatInt(raceID, 10)
	return fmt.Sprintf("%s/export/%s.csv?token=%s", strings.TrimRight(baseURL, "/"), id, util.ExportToken(secret, id))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": util.NowISO()})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"async": h.races.Races(),
		"live":  h.races.LiveRaces(),
	})
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	id, ok := strings.CutSuffix(file, ".csv")
	raceID, err := strconv.ParseInt(id, 10, 64)
	if !ok || err != nil {
		http.Error(w, "unknown export", http.StatusNotFound)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" || !util.ValidExportToken(h.secret, id, token) {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	data, filename, err := h.races.Export(r.Context(), raceID)
	if errors.Is(err, races.ErrUnknownRace) {
		http.Error(w, "race not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("race", raceID).Msg("export race")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
