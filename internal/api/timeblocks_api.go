package api

import (
	"net/http"

	"venuebook/internal/catalog"
	"venuebook/internal/metrics"
)

type timeBlockRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	IsActive  *bool  `json:"is_active"`
}

type timeBlockPatch struct {
	Name      *string `json:"name" validate:"omitempty,max=50"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	IsActive  *bool   `json:"is_active"`
}

// GET /api/time-blocks?include_inactive=true
func (s *HTTPServer) handleListTimeBlocks(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("time_blocks_list")
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	blocks, err := s.svc.Catalog.List(r.Context(), includeInactive)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"time_blocks": blocks})
}

// POST /api/time-blocks
func (s *HTTPServer) handleCreateTimeBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("time_blocks_create")
	var req timeBlockRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	b, err := s.svc.Catalog.Create(r.Context(), req.Name, req.StartTime, req.EndTime, active)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// GET /api/time-blocks/{id}
func (s *HTTPServer) handleGetTimeBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("time_blocks_get")
	b, err := s.svc.Catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// PATCH /api/time-blocks/{id}
func (s *HTTPServer) handleUpdateTimeBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("time_blocks_update")
	var req timeBlockPatch
	if !s.decodeBody(w, r, &req) {
		return
	}
	b, err := s.svc.Catalog.Update(r.Context(), r.PathValue("id"), catalog.Patch{
		Name:      req.Name,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  req.IsActive,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DELETE /api/time-blocks/{id} deactivates the block.
func (s *HTTPServer) handleDeleteTimeBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("time_blocks_delete")
	changed, err := s.svc.Catalog.SoftDelete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deactivated": changed})
}

// GET /api/time-blocks/overlap?start=10:00&end=12:00&exclude=<id>
func (s *HTTPServer) handleTimeBlockOverlap(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("time_blocks_overlap")
	q := r.URL.Query()
	overlap, err := s.svc.Catalog.Overlaps(r.Context(), q.Get("start"), q.Get("end"), q.Get("exclude"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"overlaps": overlap})
}
