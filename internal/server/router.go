package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hostmock/hostmock/internal/manager"
	"github.com/hostmock/hostmock/internal/metrics"
	"github.com/hostmock/hostmock/internal/mock"
	"github.com/hostmock/hostmock/internal/spawn"
)

// Router provides embeddable HTTP handlers for controlling mock servers.
// Endpoints:
//
//	POST {basePath}/servers/:id/start   body: StartConfig JSON
//	POST {basePath}/servers/:id/stop
//	GET  {basePath}/servers/:id
//	GET  {basePath}/servers
//	POST {basePath}/cleanup
//	GET  {basePath}/healthz
//	GET  {basePath}/metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	mgr      *manager.Manager
	basePath string
}

func NewRouter(mgr *manager.Manager, basePath string) *Router {
	return &Router{mgr: mgr, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/servers/:id/start", r.handleStart)
	group.POST("/servers/:id/stop", r.handleStop)
	group.GET("/servers/:id", r.handleGet)
	group.GET("/servers", r.handleList)
	group.POST("/cleanup", r.handleCleanup)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, mgr *manager.Manager) (*http.Server, error) {
	r := NewRouter(mgr, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStart(c *gin.Context) {
	id := c.Param("id")
	if !isSafeID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid id: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return
	}
	var cfg mock.StartConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isSafeAbsPath(cfg.SpecPath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid spec_path: must be absolute path without traversal"})
		return
	}
	rec, err := r.mgr.StartServer(c.Request.Context(), id, cfg)
	if err != nil {
		writeJSON(c, startErrorStatus(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (r *Router) handleStop(c *gin.Context) {
	id := c.Param("id")
	err := r.mgr.StopServer(c.Request.Context(), id)
	if err != nil {
		var nf *mock.NotFoundError
		if errors.As(err, &nf) {
			writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleGet(c *gin.Context) {
	id := c.Param("id")
	rec, ok := r.mgr.GetServerInfo(id)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: (&mock.NotFoundError{ID: id}).Error()})
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.GetAllServers())
}

func (r *Router) handleCleanup(c *gin.Context) {
	r.mgr.Cleanup(c.Request.Context())
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// startErrorStatus maps startup failures to status codes: caller mistakes
// (bad spec, missing tool) are 4xx, infrastructure trouble is 5xx.
func startErrorStatus(err error) int {
	var (
		specErr *spawn.SpecError
		toolErr *spawn.ToolNotInstalledError
	)
	switch {
	case errors.Is(err, mock.ErrSpecPathRequired), errors.As(err, &specErr):
		return http.StatusBadRequest
	case errors.As(err, &toolErr):
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}
