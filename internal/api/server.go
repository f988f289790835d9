// Package api provides a local read-only status server for the miner
// process.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mithril-go/miner/internal/config"
	"github.com/mithril-go/miner/internal/util"
)

// Stats is the miner's current live status, updated by the mining loop and
// served read-only over HTTP.
type Stats struct {
	mu sync.RWMutex

	hashesTotal      uint64
	hashrate         float64
	currentJobID     string
	lastAcceptedAt   time.Time
	lastRejectedAt   time.Time
	acceptedShares   uint64
	rejectedShares   uint64
}

// RecordHash updates the running hash count and rate.
func (s *Stats) RecordHash(hashrate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashesTotal++
	s.hashrate = hashrate
}

// SetCurrentJob records the job id currently being worked on.
func (s *Stats) SetCurrentJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentJobID = jobID
}

// RecordShareAccepted records an accepted share.
func (s *Stats) RecordShareAccepted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceptedShares++
	s.lastAcceptedAt = time.Now()
}

// RecordShareRejected records a rejected share.
func (s *Stats) RecordShareRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectedShares++
	s.lastRejectedAt = time.Now()
}

// Snapshot returns the current status as a plain value, safe to read
// concurrently with the mining loop's writes.
func (s *Stats) Snapshot() StatsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsResponse{
		HashesTotal:    s.hashesTotal,
		Hashrate:       s.hashrate,
		CurrentJobID:   s.currentJobID,
		AcceptedShares: s.acceptedShares,
		RejectedShares: s.rejectedShares,
		LastAccepted:   unixOrZero(s.lastAcceptedAt),
		LastRejected:   unixOrZero(s.lastRejectedAt),
		Now:            time.Now().Unix(),
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// StatsResponse is the GET /stats response body.
type StatsResponse struct {
	HashesTotal    uint64  `json:"hashes_total"`
	Hashrate       float64 `json:"hashrate"`
	CurrentJobID   string  `json:"current_job_id"`
	AcceptedShares uint64  `json:"accepted_shares"`
	RejectedShares uint64  `json:"rejected_shares"`
	LastAccepted   int64   `json:"last_accepted"`
	LastRejected   int64   `json:"last_rejected"`
	Now            int64   `json:"now"`
}

// Server is the local status server.
type Server struct {
	cfg    *config.Config
	stats  *Stats
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new status server bound to stats.
func NewServer(cfg *config.Config, stats *Stats) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{cfg: cfg, stats: stats, router: router}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.stats.Snapshot())
	})
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.API.Bind,
		Handler: s.router,
	}

	util.Infof("API server listening on %s", s.cfg.API.Bind)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("API server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts down the status server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
