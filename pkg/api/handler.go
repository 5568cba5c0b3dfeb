package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"revenue-forecast/pkg/session"
	"revenue-forecast/pkg/snapshot"
)

// maxBody borne la taille des corps JSON acceptés.
const maxBody = 1 << 20

// Handler expose une session et un store de configurations nommées.
type Handler struct {
	session *session.Session
	store   snapshot.Store
	metrics *Metrics
	now     func() time.Time
}

// NewHandler construit le handler. metrics peut être nil.
func NewHandler(s *session.Session, store snapshot.Store, metrics *Metrics) *Handler {
	return &Handler{session: s, store: store, metrics: metrics, now: time.Now}
}

// ForecastResponse est la réponse de GET /v1/forecast.
type ForecastResponse struct {
	session.Outcome
	Timeline Timeline `json:"timeline"`
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request, message string) {
	g, ok := parseGrouping(r.URL.Query().Get("group"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "group doit valoir month, quarter ou year")
		return
	}
	start := time.Now()
	out, err := h.session.Recompute(h.now())
	h.metrics.Recompute(time.Since(start), out.Forecast.Warnings, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, message, ForecastResponse{Outcome: out, Timeline: buildTimeline(out, g)})
}

func (h *Handler) getForecast(w http.ResponseWriter, r *http.Request) {
	h.recompute(w, r, "")
}

func (h *Handler) getCustomers(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "", h.session.Customers())
}

func (h *Handler) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "", h.session.Snapshot(h.now()))
}

// patchConfig applique un snapshot partiel puis recalcule.
func (h *Handler) patchConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	snap, err := snapshot.Decode(raw)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.session.ApplySnapshot(snap)
	h.recompute(w, r, "configuration mise à jour")
}

func (h *Handler) applyStoragePreset(w http.ResponseWriter, r *http.Request) {
	h.session.UseStoragePreset()
	h.recompute(w, r, "profil opslag appliqué")
}

type saveRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
}

// saveSnapshot enregistre le snapshot fourni, ou l'état courant s'il est absent.
func (h *Handler) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", fmt.Sprintf("corps invalide: %v", err))
		return
	}
	if len(req.Snapshot) == 0 || string(req.Snapshot) == "null" {
		current, err := json.Marshal(h.session.Snapshot(h.now()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		req.Snapshot = current
	}
	rec, err := h.store.Save(r.Context(), snapshot.Record{
		Name:        req.Name,
		Description: req.Description,
		Snapshot:    req.Snapshot,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	log.Printf("[INFO] snapshot enregistré id=%s name=%q", rec.ID, rec.Name)
	writeSuccess(w, http.StatusCreated, "snapshot enregistré", rec)
}

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", recs)
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", rec)
}

// loadSnapshot applique un snapshot enregistré à la session.
func (h *Handler) loadSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	snap, err := snapshot.Decode(rec.Snapshot)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.session.ApplySnapshot(snap)
	log.Printf("[INFO] snapshot chargé id=%s", rec.ID)
	h.recompute(w, r, "snapshot chargé")
}

func (h *Handler) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "snapshot supprimé", nil)
}
