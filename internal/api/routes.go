package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"phishing-detector/internal/ai"
	"phishing-detector/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	AllowedOrigins []string
	SilentDB       bool
	AIConfig       ai.Config
	OpenAIConfig   ai.OpenAIConfig
	DisableAI      bool
}

// Server wires HTTP handlers with persistence, feature extraction and the
// AI assessor.
type Server struct {
	db             *store.Database
	assessor       ai.Assessor
	allowedOrigins []string
	notifier       *AnalysisNotifier
	jobMu          sync.Mutex
	activeJob      *batchJob
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	var assessor ai.Assessor
	if cfg.DisableAI {
		logrus.Info("AI assessor disabled via configuration")
	} else {
		var primary, fallback ai.Assessor
		if client, err := ai.NewClient(cfg.AIConfig); err == nil {
			primary = client
		} else if !errors.Is(err, ai.ErrDisabled) {
			return nil, err
		}
		if client, err := ai.NewOpenAIClient(cfg.OpenAIConfig); err == nil {
			fallback = client
		} else if !errors.Is(err, ai.ErrDisabled) {
			return nil, err
		}
		assessor = ai.WithFallback(primary, fallback)
		if assessor == nil || !assessor.Enabled() {
			logrus.Info("AI assessor disabled - no credentials configured")
			assessor = nil
		}
	}

	return &Server{
		db:             db,
		assessor:       assessor,
		allowedOrigins: cfg.AllowedOrigins,
		notifier:       NewAnalysisNotifier(),
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowOriginFunc = s.originAllowed
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	// Endpoints the browser extension posts to.
	r.POST("/analyze_text", s.handleAnalyzeText)
	r.POST("/quick_check", s.handleQuickCheck)
	r.POST("/analyze_links", s.handleAnalyzeLinks)

	api := r.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/config", s.handleConfig)
		api.GET("/analyses", s.handleListAnalyses)
		api.GET("/analyses/:id", s.handleGetAnalysis)
		api.DELETE("/analyses/:id", s.handleDeleteAnalysis)
		api.POST("/analyze_batch", s.handleAnalyzeBatch)
		api.GET("/analyze_batch/status", s.handleBatchStatus)
		api.DELETE("/analyze_batch/:jobID", s.handleCancelBatch)
		api.GET("/stream", s.handleStream)
	}

	return r, nil
}

// originAllowed accepts configured origins plus any browser extension.
func (s *Server) originAllowed(origin string) bool {
	if strings.HasPrefix(origin, "chrome-extension://") || strings.HasPrefix(origin, "moz-extension://") {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	stats, err := s.db.CountByRiskLevel()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ai_enabled":     s.assessor != nil && s.assessor.Enabled(),
		"analyses_saved": stats,
	})
}

func (s *Server) handleAnalyzeText(c *gin.Context) {
	text, ok := s.bindText(c)
	if !ok {
		return
	}
	resp, err := s.analyzeText(c.Request.Context(), text, "api")
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleQuickCheck(c *gin.Context) {
	text, ok := s.bindText(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, quickCheck(text))
}

func (s *Server) handleAnalyzeLinks(c *gin.Context) {
	text, ok := s.bindText(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analyzeLinks(text))
}

func (s *Server) bindText(c *gin.Context) (string, bool) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return "", false
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("text is required"))
		return "", false
	}
	return text, true
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := s.db.ListAnalyses(limit, offset)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	stats, err := s.db.CountByRiskLevel()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]AnalysisDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, FromModel(item))
	}
	c.JSON(http.StatusOK, AnalysesResponse{Items: dtos, Total: total, Stats: stats})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	analysis, err := s.db.GetAnalysis(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, errors.New("analysis not found"))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, FromModel(*analysis))
}

func (s *Server) handleDeleteAnalysis(c *gin.Context) {
	if err := s.db.DeleteAnalysis(c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, errors.New("analysis not found"))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Items) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("items are required"))
		return
	}

	s.jobMu.Lock()
	job, err := s.startBatch(req.Items)
	s.jobMu.Unlock()
	if err != nil {
		s.renderError(c, http.StatusConflict, err)
		return
	}

	c.JSON(http.StatusAccepted, BatchStartResponse{
		JobID:     job.id,
		Total:     job.total,
		StartedAt: job.startedAt,
	})
}

func (s *Server) handleBatchStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	if job == nil {
		c.JSON(http.StatusOK, BatchStatusResponse{Running: false})
		return
	}
	c.JSON(http.StatusOK, BatchStatusResponse{
		Running:   true,
		JobID:     job.id,
		Processed: job.progress(),
		Total:     job.total,
	})
}

func (s *Server) handleCancelBatch(c *gin.Context) {
	jobID := c.Param("jobID")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil || s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("no such batch job"))
		return
	}
	s.cancelBatch()
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade")
		return
	}
	client := s.notifier.Register(conn)
	defer s.notifier.Unregister(client)

	// Hold the connection open until the peer goes away; inbound frames
	// are discarded.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	logrus.WithError(err).WithField("path", c.FullPath()).Warn("request failed")
	c.JSON(status, gin.H{"detail": err.Error()})
}
