package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/catalog-sync/pkg/browser"
	"github.com/Sternrassler/catalog-sync/pkg/detail"
	"github.com/go-chi/chi/v5"
)

// handleGetView applies the search and category query parameters, when
// present, and returns the filtered view.
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Has("search") {
		s.session.SetSearch(query.Get("search"))
	}
	if query.Has("category") {
		s.session.SetCategory(query.Get("category"))
	}

	view := s.session.View()
	respondJSON(w, http.StatusOK, map[string]any{
		"records":     view.Records,
		"criteria":    view.Criteria,
		"suggestions": view.Suggestions,
		"status":      view.Status,
		"view_count":  len(view.Records),
	})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleGetFacets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.session.Facets())
}

type sentinelRequest struct {
	Visible  bool     `json:"visible"`
	Distance *float64 `json:"distance,omitempty"`
}

// handleSentinel feeds a viewport report to the scroll trigger. A distance,
// when given, is judged against the trigger's margin.
func (s *Server) handleSentinel(w http.ResponseWriter, r *http.Request) {
	var req sentinelRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Distance != nil {
		s.observer.Report(*req.Distance)
	} else {
		s.observer.Emit(req.Visible)
	}
	respondJSON(w, http.StatusAccepted, s.session.Status())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	err := s.session.Retry(ctx)
	switch {
	case errors.Is(err, browser.ErrNothingToRetry):
		respondError(w, http.StatusConflict, "Nothing to retry")
		return
	case err != nil:
		respondError(w, http.StatusGatewayTimeout, "Retry did not complete")
		return
	}
	respondJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleGetPageSizes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"page_sizes": browser.PageSizes,
		"current":    s.session.Status().Limit,
	})
}

type pageSizeRequest struct {
	Limit int `json:"limit"`
}

// handleSetPageSize resets the collection and waits for the first page of
// the new size.
func (s *Server) handleSetPageSize(w http.ResponseWriter, r *http.Request) {
	var req pageSizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !browser.ValidPageSize(req.Limit) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("limit must be one of %v", browser.PageSizes))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	err := s.session.SetPageSize(ctx, req.Limit)
	if errors.Is(err, browser.ErrInvalidPageSize) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Int("limit", req.Limit).Msg("Page size change failed")
		respondError(w, http.StatusServiceUnavailable, "Failed to change page size")
		return
	}
	respondJSON(w, http.StatusOK, s.session.Status())
}

// handleGetRecord returns a single record for the detail view.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	idOrName := chi.URLParam(r, "idOrName")

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	record, err := s.details.Get(ctx, idOrName)
	if errors.Is(err, detail.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Record not found")
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("record", idOrName).Msg("Detail fetch failed")
		respondError(w, http.StatusBadGateway, "Failed to fetch record")
		return
	}

	respondJSON(w, http.StatusOK, record)
}
