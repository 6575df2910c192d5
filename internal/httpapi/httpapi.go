// Package httpapi wires the REST surface of the editorial core (spec §6)
// onto a chi router in the teacher's own style: plain handler funcs bound
// with r.Get/r.Post, json.NewEncoder for responses, and the teacher's
// middleware/CORS stack from cmd/main.go.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/articles"
	"github.com/geraldfingburke/editorial-core/internal/auth"
	"github.com/geraldfingburke/editorial-core/internal/editorial"
	"github.com/geraldfingburke/editorial-core/internal/events"
	"github.com/geraldfingburke/editorial-core/internal/models"
	"github.com/geraldfingburke/editorial-core/internal/orchestrator"
	"github.com/geraldfingburke/editorial-core/internal/queue"
)

// API bundles the handlers and their dependencies.
type API struct {
	Articles     *articles.Repository
	Queue        *queue.Queue
	Orchestrator *orchestrator.Orchestrator
	Editorial    *editorial.Service
	Events       *events.Bus
	Log          zerolog.Logger
}

// Routes mounts every handler onto r.
func (a *API) Routes(r chi.Router) {
	r.Get("/health", a.handleHealth)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", a.handleEnqueueJob)
		r.Get("/{id}", a.handleGetJob)
		r.Get("/{id}/events", a.handleJobEvents)
	})

	r.Route("/api/news", func(r chi.Router) {
		r.Get("/", a.handleListArticles)
		r.Get("/breaking/latest", a.handleBreaking)
	})

	r.Route("/api/editorial/drafts/{draftID}", func(r chi.Router) {
		r.Put("/", a.handleUpdateDraft)
		r.Post("/apply", a.handleApplyDraft)
		r.Post("/archive", a.handleArchiveDraft)
	})
	r.Post("/api/editorial/articles/{articleID}/transition", a.handleTransitionArticle)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- jobs ----------------------------------------------------------------

type enqueueRequest struct {
	JobType  string `json:"job_type"`
	EntityID string `json:"entity_id"`
	Nonce    string `json:"idempotency_key"`
}

func (a *API) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobType == "" || req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "job_type and entity_id are required")
		return
	}

	actorUsername := ""
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		actorUsername = actor.Username
	}

	job, err := a.Orchestrator.Trigger(r.Context(), queue.JobType(req.JobType), req.EntityID, actorUsername, req.Nonce)
	if err != nil {
		if errors.Is(err, queue.ErrQueueOverloaded) {
			writeError(w, http.StatusTooManyRequests, "queue is over its backpressure limit")
			return
		}
		a.Log.Error().Err(err).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Queue.GetJob(r.Context(), id)
	if err != nil {
		a.Log.Error().Err(err).Msg("get job failed")
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobEvents streams models.ProgressEvent as server-sent events for
// the run identified by the job's id, until the client disconnects or the
// job reaches a terminal state (spec §6 live event stream).
func (a *API) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := a.Events.Subscribe(runID)
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, payload)
			flusher.Flush()
			if event.EventType == "completed" || event.EventType == "failed" {
				return
			}
		}
	}
}

// --- articles --------------------------------------------------------------

func (a *API) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := articles.ListFilter{
		Status:     models.ArticleStatus(q.Get("status")),
		Category:   models.ArticleCategory(q.Get("category")),
		Search:     q.Get("search"),
		SortBy:     defaultString(q.Get("sort_by"), "created_at"),
		LocalFirst: defaultBool(q.Get("local_first"), true),
		Page:       atoiDefault(q.Get("page"), 1),
		PerPage:    atoiDefault(q.Get("per_page"), 20),
	}
	if raw := q.Get("is_breaking"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid is_breaking")
			return
		}
		filter.IsBreaking = &v
	}

	result, err := a.Articles.List(r.Context(), filter)
	if err != nil {
		a.Log.Error().Err(err).Msg("list articles failed")
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleBreaking(w http.ResponseWriter, r *http.Request) {
	limit := atoiDefault(r.URL.Query().Get("limit"), 5)
	items, err := a.Articles.Breaking(r.Context(), limit)
	if err != nil {
		a.Log.Error().Err(err).Msg("breaking articles failed")
		writeError(w, http.StatusInternalServerError, "failed to load breaking articles")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// --- editorial ---------------------------------------------------------

type updateDraftRequest struct {
	ExpectedVersion int    `json:"expected_version"`
	Title           string `json:"title"`
	Body            string `json:"body"`
}

func (a *API) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	draftID, err := strconv.ParseInt(chi.URLParam(r, "draftID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}
	var req updateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = a.Editorial.UpdateDraft(r.Context(), draftID, req.ExpectedVersion, req.Title, req.Body, actorUsername(r))
	a.respondToEditorialError(w, err)
}

func (a *API) handleApplyDraft(w http.ResponseWriter, r *http.Request) {
	draftID, err := strconv.ParseInt(chi.URLParam(r, "draftID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}
	err = a.Editorial.ApplyDraft(r.Context(), draftID, actorUsername(r))
	a.respondToEditorialError(w, err)
}

func (a *API) handleArchiveDraft(w http.ResponseWriter, r *http.Request) {
	draftID, err := strconv.ParseInt(chi.URLParam(r, "draftID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}
	err = a.Editorial.ArchiveDraft(r.Context(), draftID, actorUsername(r))
	a.respondToEditorialError(w, err)
}

type transitionRequest struct {
	NewStatus string `json:"new_status"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
}

func (a *API) handleTransitionArticle(w http.ResponseWriter, r *http.Request) {
	articleID, err := strconv.ParseInt(chi.URLParam(r, "articleID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = a.Editorial.Transition(r.Context(), articleID, models.ArticleStatus(req.NewStatus), actorUsername(r), req.Decision, req.Reason)
	a.respondToEditorialError(w, err)
}

func (a *API) respondToEditorialError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, editorial.ErrVersionConflict), errors.Is(err, editorial.ErrAlreadyApplied):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, editorial.ErrDraftNotEditable), errors.Is(err, editorial.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	default:
		a.Log.Error().Err(err).Msg("editorial operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func actorUsername(r *http.Request) string {
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		return actor.Username
	}
	return ""
}

// --- helpers ---------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultBool(v string, fallback bool) bool {
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func atoiDefault(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
