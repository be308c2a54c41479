package sandbox

import (
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

const latestAlias = "$LATEST"

type lambda struct {
	Version      string `json:"Version"`
	FunctionName string `json:"FunctionName"`
}

type bundle struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Server imitates the page builder deployment API closely enough to
// rehearse a full run: uploads, delayed deploys, flaky terminations and
// promotion.
type Server struct {
	mu sync.Mutex

	fixture  Fixture
	versions []int
	next     int
	bundles  map[string]bundle
	promoted string

	pending      bool
	pendingAfter int

	terminateCalls int

	logger *zap.Logger
}

func New(f Fixture, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		fixture: f,
		bundles: map[string]bundle{},
		logger:  logger,
	}
	for _, v := range f.Versions {
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn("ignoring non numeric fixture version", zap.String("version", v))
			continue
		}
		s.versions = append(s.versions, n)
		if n > s.next {
			s.next = n
		}
	}
	return s
}

// Router exposes the API under the same paths as the real service.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.auth())

	r.GET(pagebuilder.ServicesPath, s.listServices)
	r.POST(pagebuilder.ServicesPath, s.deploy)
	r.POST(pagebuilder.ServicesPath+"/:version/terminate", s.terminate)
	r.POST(pagebuilder.ServicesPath+"/:version/promote", s.promote)
	r.POST(pagebuilder.BundlesPath, s.upload)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("sandbox request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.fixture.APIKey == "" || c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+s.fixture.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) listServices(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		if s.pendingAfter <= 0 {
			s.startVersion()
		} else {
			s.pendingAfter--
		}
	}

	lambdas := []lambda{{Version: latestAlias, FunctionName: "fusion"}}
	for _, v := range s.versions {
		lambdas = append(lambdas, lambda{Version: strconv.Itoa(v), FunctionName: "fusion"})
	}
	c.JSON(http.StatusOK, gin.H{"lambdas": lambdas})
}

// startVersion must be called with mu held.
func (s *Server) startVersion() {
	s.pending = false
	s.next++
	s.versions = append(s.versions, s.next)
	s.logger.Info("sandbox version started", zap.Int("version", s.next))
}

func (s *Server) upload(c *gin.Context) {
	if s.fixture.FailUpload {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload rejected"})
		return
	}
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	fh, err := c.FormFile("bundle")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	size, err := io.Copy(io.Discard, f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b := bundle{Name: name, Size: size, UploadedAt: time.Now().UTC()}
	s.mu.Lock()
	s.bundles[name] = b
	s.mu.Unlock()
	c.JSON(http.StatusCreated, b)
}

func (s *Server) deploy(c *gin.Context) {
	name := c.Query("bundle")
	pbVersion := c.DefaultQuery("version", "latest")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fixture.FailDeploy {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deploy rejected"})
		return
	}
	if _, ok := s.bundles[name]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "bundle not found"})
		return
	}
	if !s.fixture.NeverDeploy {
		s.pending = true
		s.pendingAfter = s.fixture.DeployDelay
	}
	c.JSON(http.StatusAccepted, gin.H{"bundle": name, "version": pbVersion})
}

func (s *Server) terminate(c *gin.Context) {
	v, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.terminateCalls++
	if s.terminateCalls <= s.fixture.TerminateFailures {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "version is still draining"})
		return
	}

	kept := s.versions[:0]
	for _, running := range s.versions {
		if running != v {
			kept = append(kept, running)
		}
	}
	s.versions = kept
	c.JSON(http.StatusAccepted, gin.H{"terminated": v})
}

func (s *Server) promote(c *gin.Context) {
	v := c.Param("version")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fixture.FailPromote {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "promote rejected"})
		return
	}
	if !s.running(v) {
		c.JSON(http.StatusNotFound, gin.H{"error": "version not running"})
		return
	}
	s.promoted = v
	c.JSON(http.StatusOK, gin.H{"promoted": v})
}

// running must be called with mu held.
func (s *Server) running(v string) bool {
	n, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	for _, r := range s.versions {
		if r == n {
			return true
		}
	}
	return false
}

// Snapshot is the observable state of the sandbox.
type Snapshot struct {
	Versions       []int
	Bundles        []string
	Promoted       string
	TerminateCalls int
}

func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Versions:       append([]int(nil), s.versions...),
		Promoted:       s.promoted,
		TerminateCalls: s.terminateCalls,
	}
	for name := range s.bundles {
		snap.Bundles = append(snap.Bundles, name)
	}
	return snap
}
