// Package api exposes the analysis operations as a JSON HTTP surface.
// Handlers stay thin: parameter parsing here, all semantics behind the
// execution router.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/internal/exec"
	"govigil/ports"
)

// Server hosts the JSON API over one active case table snapshot. The table
// swaps atomically on reload; in-flight requests keep the snapshot they
// started with.
type Server struct {
	engine *gin.Engine
	router *exec.Router
	log    *logrus.Entry

	mu    sync.RWMutex
	table *signal.CaseTable
}

// NewServer builds the HTTP server around an execution router
func NewServer(router *exec.Router, mode string) *Server {
	gin.SetMode(mode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		router: router,
		log:    logrus.WithField("component", "api"),
	}
	s.engine.Use(s.requestLogger())
	s.registerRoutes()
	return s
}

// SetTable swaps the active case table snapshot
func (s *Server) SetTable(table *signal.CaseTable) {
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{
		"version": table.Version,
		"cases":   table.Size(),
	}).Info("case table loaded")
}

func (s *Server) currentTable() *signal.CaseTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Handler returns the underlying http handler, for tests and embedding
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/signals/compute", s.handleComputeSignal)
		v1.GET("/signals/rank", s.handleRankCandidates)
		v1.GET("/signals/top", s.handleTopSignals)
		v1.POST("/clusters", s.handleClusterSignal)
		v1.POST("/duplicates", s.handleFindDuplicates)
		v1.GET("/stats", s.handleStats)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("requestID", requestID)
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed":    time.Since(start).String(),
		}).Info("request handled")
	}
}

type computeSignalRequest struct {
	Drug        string  `json:"drug" binding:"required"`
	Reaction    string  `json:"reaction" binding:"required"`
	MinAge      float64 `json:"min_age"`
	MaxAge      float64 `json:"max_age"`
	Sex         string  `json:"sex"`
	Country     string  `json:"country"`
	FromDate    string  `json:"from_date"` // YYYY-MM-DD
	ToDate      string  `json:"to_date"`   // YYYY-MM-DD
	OnlySerious bool    `json:"only_serious"`
}

func (s *Server) handleComputeSignal(c *gin.Context) {
	var req computeSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := map[string]interface{}{
		"drug":     req.Drug,
		"reaction": req.Reaction,
	}
	if req.MinAge > 0 {
		params["min_age"] = req.MinAge
	}
	if req.MaxAge > 0 {
		params["max_age"] = req.MaxAge
	}
	if req.Sex != "" {
		params["sex"] = req.Sex
	}
	if req.Country != "" {
		params["country"] = req.Country
	}
	for key, value := range map[string]string{"from_date": req.FromDate, "to_date": req.ToDate} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be YYYY-MM-DD"})
			return
		}
		params[key] = value
	}
	if req.OnlySerious {
		params["only_serious"] = true
	}
	s.execute(c, signal.OpComputeSignal, params)
}

func (s *Server) handleRankCandidates(c *gin.Context) {
	params := map[string]interface{}{}
	if topK := queryInt(c, "top_k"); topK > 0 {
		params["top_k"] = topK
	}
	s.execute(c, signal.OpRankCandidates, params)
}

func (s *Server) handleTopSignals(c *gin.Context) {
	params := map[string]interface{}{}
	if topK := queryInt(c, "top_k"); topK > 0 {
		params["top_k"] = topK
	}
	s.execute(c, signal.OpTopSignals, params)
}

type clusterRequest struct {
	Drug     string `json:"drug" binding:"required"`
	Reaction string `json:"reaction" binding:"required"`
	K        int    `json:"k"`
}

func (s *Server) handleClusterSignal(c *gin.Context) {
	var req clusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := map[string]interface{}{
		"drug":     req.Drug,
		"reaction": req.Reaction,
	}
	if req.K > 0 {
		params["k"] = req.K
	}
	s.execute(c, signal.OpClusterSignal, params)
}

type duplicatesRequest struct {
	Mode      string  `json:"mode"`
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleFindDuplicates(c *gin.Context) {
	var req duplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = string(signal.ModeExact)
	}
	if mode != string(signal.ModeExact) && mode != string(signal.ModeNear) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be exact or near"})
		return
	}
	params := map[string]interface{}{"mode": mode}
	if req.Threshold > 0 {
		params["threshold"] = req.Threshold
	}
	s.execute(c, signal.OpFindDuplicates, params)
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.router.Stats()
	resp := gin.H{"router": stats}
	if table := s.currentTable(); table != nil {
		resp["dataset"] = gin.H{"version": table.Version, "cases": table.Size()}
	}
	c.JSON(http.StatusOK, resp)
}

// execute runs one operation through the router and translates domain errors
// into HTTP responses. Budget overruns return 206 with whatever completed.
func (s *Server) execute(c *gin.Context, op signal.Operation, params map[string]interface{}) {
	table := s.currentTable()
	if table == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no case table loaded"})
		return
	}

	result, err := s.router.Execute(c.Request.Context(), ports.ExecRequest{
		Op:     op,
		Params: params,
		Table:  table,
	})
	if err != nil {
		s.renderError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) renderError(c *gin.Context, op signal.Operation, err error) {
	if partial, ok := core.PartialResult(err); ok {
		c.JSON(http.StatusPartialContent, gin.H{
			"error":   "budget exceeded",
			"partial": partial,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case core.IsNotComputable(err), core.IsInsufficientData(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidContingencyTable),
		errors.Is(err, core.ErrUnknownOperation),
		errors.Is(err, core.ErrInsufficientCasesForClustering),
		errors.Is(err, core.ErrCaseLimitExceeded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrExecutionUnavailable):
		status = http.StatusServiceUnavailable
	}

	s.log.WithError(err).WithField("op", op).Warn("operation failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string) int {
	if v, ok := c.GetQuery(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
