package handler

import (
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/terrainkit/internal/auth"
	"github.com/freeeve/terrainkit/internal/service"
	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/region"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

const maxMapFileSize = 8 << 20

// MapHandler serves map analysis and path queries.
type MapHandler struct {
	mapSvc *service.MapService
}

// NewMapHandler creates a MapHandler.
func NewMapHandler(mapSvc *service.MapService) *MapHandler {
	return &MapHandler{mapSvc: mapSvc}
}

// OpenMap handles POST /api/v1/maps. The body is a map file in YAML or JSON.
func (h *MapHandler) OpenMap(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMapFileSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mf, err := terrain.ParseMapFile(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := mf.Grid(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.mapSvc.Open(r.Context(), mf)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Info().Str("clientId", auth.ClientIDFromContext(r.Context())).Str("map", info.ID).Msg("Map opened")
	writeJSON(w, http.StatusCreated, info)
}

// ListMaps handles GET /api/v1/maps
func (h *MapHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mapSvc.List())
}

// ListStored handles GET /api/v1/stored
func (h *MapHandler) ListStored(w http.ResponseWriter, r *http.Request) {
	stored, err := h.mapSvc.Stored(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// GetMap handles GET /api/v1/maps/{id}
func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	info, err := h.mapSvc.Info(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CloseMap handles DELETE /api/v1/maps/{id}
func (h *MapHandler) CloseMap(w http.ResponseWriter, r *http.Request) {
	if err := h.mapSvc.Close(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reanalyze handles POST /api/v1/maps/{id}/reanalyze
func (h *MapHandler) Reanalyze(w http.ResponseWriter, r *http.Request) {
	info, err := h.mapSvc.Reanalyze(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetAnalysis handles GET /api/v1/maps/{id}/analysis
func (h *MapHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mapSvc.Snapshot(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListRegions handles GET /api/v1/maps/{id}/regions?type=ramp
func (h *MapHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mapSvc.Snapshot(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	regions := snap.Regions
	if q := r.URL.Query().Get("type"); q != "" {
		var t region.Type
		if err := t.UnmarshalText([]byte(q)); err != nil {
			writeError(w, http.StatusBadRequest, "unknown region type")
			return
		}
		regions = slices.DeleteFunc(regions, func(rg region.Region) bool { return rg.Type != t })
	}
	if regions == nil {
		regions = []region.Region{}
	}
	writeJSON(w, http.StatusOK, regions)
}

// GetRegion handles GET /api/v1/maps/{id}/regions/{regionId}
func (h *MapHandler) GetRegion(w http.ResponseWriter, r *http.Request) {
	regionID, err := strconv.Atoi(r.PathValue("regionId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid region id")
		return
	}
	rg, err := h.mapSvc.Region(r.PathValue("id"), regionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rg)
}

// RegionAt handles GET /api/v1/maps/{id}/region-at?x=..&y=..
func (h *MapHandler) RegionAt(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}
	rg, err := h.mapSvc.RegionAt(r.PathValue("id"), geo.Pt(x, y))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rg)
}

// ListExpands handles GET /api/v1/maps/{id}/expands
func (h *MapHandler) ListExpands(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mapSvc.Snapshot(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	expands := snap.Expands
	if expands == nil {
		expands = []region.ExpandLocation{}
	}
	writeJSON(w, http.StatusOK, expands)
}

// ListChokepoints handles GET /api/v1/maps/{id}/chokepoints
func (h *MapHandler) ListChokepoints(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mapSvc.Snapshot(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if snap.Chokepoints == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, snap.Chokepoints)
}

// FindPath handles POST /api/v1/maps/{id}/path
func (h *MapHandler) FindPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    geo.Point  `json:"from"`
		To      geo.Point  `json:"to"`
		Exclude []geo.Cell `json:"exclude,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.mapSvc.FindPath(r.PathValue("id"), req.From, req.To, req.Exclude)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FindRegionPath handles POST /api/v1/maps/{id}/region-path
func (h *MapHandler) FindRegionPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    geo.Point `json:"from"`
		To      geo.Point `json:"to"`
		Exclude []int     `json:"exclude,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	regions, found, err := h.mapSvc.FindRegionPath(r.PathValue("id"), req.From, req.To, req.Exclude)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	ids := make([]int, len(regions))
	for i, rg := range regions {
		ids[i] = rg.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": found, "regions": ids})
}

// UnitDestroyed handles POST /api/v1/maps/{id}/units/{tag}/destroyed
func (h *MapHandler) UnitDestroyed(w http.ResponseWriter, r *http.Request) {
	tag, err := strconv.ParseUint(r.PathValue("tag"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit tag")
		return
	}
	res, err := h.mapSvc.UnitDestroyed(r.PathValue("id"), tag)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
