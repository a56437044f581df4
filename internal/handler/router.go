package handler

import (
	"net/http"

	"github.com/freeeve/terrainkit/internal/auth"
	"github.com/freeeve/terrainkit/internal/middleware"
)

// NewRouter wires every route of the analysis server.
func NewRouter(maps *MapHandler, authH *AuthHandler, ws *WSHandler, jwtMgr *auth.JWTManager) http.Handler {
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)
	write := auth.RequireScope(auth.ScopeWrite)
	read := auth.RequireScope(auth.ScopeRead)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("POST /auth/refresh", authH.RefreshToken)
	mux.HandleFunc("GET /auth/dev", authH.DevToken)

	// Protected API routes
	api := http.NewServeMux()
	handle := func(pattern string, scope func(http.Handler) http.Handler, h http.HandlerFunc) {
		api.Handle(pattern, middleware.Chain(h, scope, middleware.MapContext))
	}
	handle("POST /maps", write, maps.OpenMap)
	handle("GET /maps", read, maps.ListMaps)
	handle("GET /stored", read, maps.ListStored)
	handle("GET /maps/{id}", read, maps.GetMap)
	handle("DELETE /maps/{id}", write, maps.CloseMap)
	handle("POST /maps/{id}/reanalyze", write, maps.Reanalyze)
	handle("GET /maps/{id}/analysis", read, maps.GetAnalysis)
	handle("GET /maps/{id}/regions", read, maps.ListRegions)
	handle("GET /maps/{id}/regions/{regionId}", read, maps.GetRegion)
	handle("GET /maps/{id}/region-at", read, maps.RegionAt)
	handle("GET /maps/{id}/expands", read, maps.ListExpands)
	handle("GET /maps/{id}/chokepoints", read, maps.ListChokepoints)
	handle("POST /maps/{id}/path", read, maps.FindPath)
	handle("POST /maps/{id}/region-path", read, maps.FindRegionPath)
	handle("POST /maps/{id}/units/{tag}/destroyed", write, maps.UnitDestroyed)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", ws.ServeWS)

	return middleware.Chain(mux, middleware.Recover, middleware.Logger, middleware.CORS("*"), middleware.JSON)
}
