package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/ecswait/internal/config"
	"github.com/me/ecswait/internal/store"
	"github.com/me/ecswait/internal/template"
	"github.com/me/ecswait/pkg/model"
)

// decodeWaitSpec reads a wait spec from the request body.
func decodeWaitSpec(r *http.Request) (*config.WaitSpec, *model.APIError) {
	var spec config.WaitSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		return nil, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		}
	}
	return &spec, nil
}

// buildFilter renders the wait spec's templated fields and builds its filter.
// With strict set the filter keys and values are validated as well.
func (s *Server) buildFilter(ctx context.Context, spec *config.WaitSpec, waitID string, createdAt time.Time, strict bool) (model.QueryFilter, *model.APIError) {
	renderer := template.NewRenderer(template.Context{
		WaitID:    waitID,
		CreatedAt: createdAt,
		Params:    spec.Params,
		Env:       s.env,
		Timeout:   s.config.TemplateTimeout,
	}).WithContext(ctx)
	filter, err := renderer.Filter(spec.Cluster, spec.Filter)
	if err != nil {
		var ige *model.InvalidGroupError
		if errors.As(err, &ige) {
			return model.QueryFilter{}, model.NewValidationError("missing required field",
				model.FieldError{Field: "cluster", Message: ige.Error()})
		}
		return model.QueryFilter{}, model.NewValidationError("template rendering failed",
			model.FieldError{Field: "filter", Message: err.Error()})
	}
	if strict {
		if err := filter.Validate(); err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				return model.QueryFilter{}, apiErr
			}
			return model.QueryFilter{}, model.NewValidationError(err.Error())
		}
	}
	return filter, nil
}

func (s *Server) handleCreateWait(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	spec, apiErr := decodeWaitSpec(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	spec.ApplyDefaults()

	now := time.Now().UTC()
	id := "wait_" + uuid.New().String()
	filter, apiErr := s.buildFilter(r.Context(), spec, id, now, r.URL.Query().Get("strict") == "true")
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	wait := &model.Wait{
		ID:        id,
		Cluster:   filter.Cluster(),
		Filter:    filter,
		State:     model.WaitStateWaiting,
		Interval:  spec.Interval.Std(),
		Timeout:   spec.PollTimeout(),
		SoftFail:  spec.SoftFail,
		Labels:    spec.Labels,
		CreatedAt: now,
	}
	if wait.Labels == nil {
		wait.Labels = map[string]string{}
	}

	if err := s.store.CreateWait(r.Context(), wait); err != nil {
		respondInternal(w, reqID, err)
		return
	}

	s.logger.Info("wait created", "id", wait.ID, "cluster", wait.Cluster, "interval", wait.Interval, "timeout", wait.Timeout)
	respondCreated(w, reqID, wait)
}

func (s *Server) handleListWaits(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	q := r.URL.Query()

	opts := model.DefaultListOptions()
	opts.State = q.Get("state")
	opts.Cluster = q.Get("cluster")
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: name, Message: "must be an integer"}))
			return
		}
		*dst = n
	}
	opts.Clamp()

	waits, total, err := s.store.ListWaits(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if waits == nil {
		waits = []*model.Wait{}
	}

	respondList(w, reqID, waits, pagination(opts, total))
}

func (s *Server) handleGetWait(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wait, err := s.store.GetWait(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if wait == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("wait", id))
		return
	}
	respondOK(w, reqID, wait)
}

func (s *Server) handleCancelWait(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wait, err := s.store.GetWait(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if wait == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("wait", id))
		return
	}

	if !wait.State.CanTransitionTo(model.WaitStateCancelled) {
		respondError(w, reqID, http.StatusConflict, &model.APIError{
			Code:    model.ErrConflict,
			Message: "cannot cancel wait in state " + string(wait.State),
		})
		return
	}

	now := time.Now().UTC()
	from := wait.State
	wait.State = model.WaitStateCancelled
	wait.CompletedAt = &now

	if err := s.store.UpdateWait(r.Context(), wait, from); err != nil {
		switch {
		case errors.Is(err, store.ErrStateConflict):
			respondError(w, reqID, http.StatusConflict, &model.APIError{
				Code:    model.ErrConflict,
				Message: "wait finished before it could be cancelled",
			})
		case errors.Is(err, store.ErrNotFound):
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("wait", id))
		default:
			respondInternal(w, reqID, err)
		}
		return
	}

	s.logger.Info("wait cancelled", "id", wait.ID, "cluster", wait.Cluster, "polls", wait.Polls)
	respondOK(w, reqID, wait)
}
