package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	catanalyzer "github.com/menta2k/cat-analyzer"
	"github.com/menta2k/cat-analyzer/internal/store"
	"github.com/menta2k/cat-analyzer/internal/utils"
	"github.com/menta2k/cat-analyzer/pkg/engine"
	"github.com/menta2k/cat-analyzer/pkg/processing"
	"github.com/menta2k/cat-analyzer/pkg/types"
)

// defaultListLimit caps list responses when the client sends no limit.
const defaultListLimit = 50

// analyzeRequest is the JSON body of POST /api/vision/analyze.
type analyzeRequest struct {
	ImageURL            string  `json:"image_url"`
	Breed               string  `json:"breed"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// analyzeResponse is the flat analyze payload. Negative outcomes carry only
// is_cat, confidence, and message; measurement fields appear on positives.
type analyzeResponse struct {
	ID           int64              `json:"id,omitempty"`
	IsCat        bool               `json:"is_cat"`
	Confidence   float64            `json:"confidence"`
	Message      string             `json:"message"`
	Breed        string             `json:"breed,omitempty"`
	Posture      string             `json:"posture,omitempty"`
	ChestCM      float64            `json:"chest_cm,omitempty"`
	NeckCM       float64            `json:"neck_cm,omitempty"`
	BodyLengthCM float64            `json:"body_length_cm,omitempty"`
	WeightKg     float64            `json:"weight_kg,omitempty"`
	SizeCategory string             `json:"size_category,omitempty"`
	CoatColor    string             `json:"coat_color,omitempty"`
	QualityFlag  string             `json:"quality_flag,omitempty"`
	BoundingBox  *types.BoundingBox `json:"bounding_box,omitempty"`
	ImageURL     string             `json:"image_url,omitempty"`
	DetectedAt   string             `json:"detected_at,omitempty"`
	Method       string             `json:"method,omitempty"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "cat-analyzer API is running",
		"version": catanalyzer.GetVersion(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	cpuPercent, _ := utils.SystemCPUUsage()
	memPercent, _ := utils.SystemMemoryUsage()

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"version":        catanalyzer.GetVersion(),
		"uptime_sec":     int64(time.Since(s.startedAt).Seconds()),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
	})
}

// handleAnalyze accepts either a JSON body naming an image URL or a
// multipart upload with an image file.
func (s *Server) handleAnalyze(c *gin.Context) {
	if c.ContentType() == "application/json" {
		s.analyzeFromURL(c)
		return
	}
	s.analyzeFromUpload(c)
}

func (s *Server) analyzeFromURL(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid JSON body: " + err.Error()})
		return
	}
	if req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "image_url is required"})
		return
	}

	opts := catanalyzer.Options{Breed: req.Breed, Threshold: req.ConfidenceThreshold}
	result, err := s.analyzer.AnalyzeURL(c.Request.Context(), req.ImageURL, opts)
	if err != nil {
		// A failed fetch is the caller's problem, not ours.
		s.respondAnalyzeError(c, err, http.StatusBadRequest)
		return
	}

	s.respondResult(c, result, req.ImageURL)
}

func (s *Server) analyzeFromUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		file, header, err = c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "image file is required"})
			return
		}
	}
	defer file.Close()

	maxBytes := s.config.MaxUploadMB * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to read upload: " + err.Error()})
		return
	}
	if int64(len(data)) > maxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("file too large (max %d MB)", s.config.MaxUploadMB)})
		return
	}

	opts := catanalyzer.Options{Breed: c.PostForm("breed")}
	if raw := c.PostForm("confidence_threshold"); raw != "" {
		if threshold, err := strconv.ParseFloat(raw, 64); err == nil {
			opts.Threshold = threshold
		}
	}

	result, err := s.analyzer.AnalyzeBytes(c.Request.Context(), data, opts)
	if err != nil {
		s.respondAnalyzeError(c, err, http.StatusInternalServerError)
		return
	}

	imageURL := ""
	if result.IsCat {
		imageURL = s.saveUpload(data, header.Filename)
	}
	s.respondResult(c, result, imageURL)
}

// respondAnalyzeError maps pipeline failures onto HTTP statuses:
// undecodable input is a client error, an engine fault means the inference
// backend is unreachable, and anything else gets the caller's fallback.
func (s *Server) respondAnalyzeError(c *gin.Context, err error, fallbackStatus int) {
	var infErr *engine.InferenceError
	switch {
	case errors.Is(err, processing.ErrUndecodable):
		c.JSON(http.StatusBadRequest, gin.H{"message": "image data is not a decodable image"})
	case errors.As(err, &infErr):
		s.logger.Error("Inference backend failed", "backend", infErr.Backend, "error", infErr.Err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "inference backend unavailable"})
	default:
		c.JSON(fallbackStatus, gin.H{"message": "failed to analyze image: " + err.Error()})
	}
}

// respondResult renders the analyze payload. Positive results are persisted
// and broadcast to live viewers before responding.
func (s *Server) respondResult(c *gin.Context, result types.AnalysisResult, imageURL string) {
	resp := analyzeResponse{
		IsCat:      result.IsCat,
		Confidence: result.Detection.Confidence,
		Message:    result.Reason,
	}
	if !result.IsCat {
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Message = "Cat detected successfully"
	resp.Breed = result.Breed
	resp.WeightKg = result.WeightKg
	resp.SizeCategory = string(result.SizeCategory)
	resp.CoatColor = result.CoatColor
	resp.BoundingBox = result.Detection.BoundingBox
	resp.ImageURL = imageURL
	resp.Method = result.Method
	if result.Metrics != nil {
		resp.Posture = string(result.Metrics.Posture)
		resp.ChestCM = result.Metrics.ChestCM
		resp.NeckCM = result.Metrics.NeckCM
		resp.BodyLengthCM = result.Metrics.BodyLengthCM
		resp.QualityFlag = string(result.Metrics.QualityFlag)
	}

	record := store.FromResult(result, imageURL)
	if _, err := s.store.Insert(record); err != nil {
		// The caller still gets their measurement; persistence is best effort.
		s.logger.Error("Failed to persist analysis", "error", err)
	} else {
		resp.ID = record.ID
		resp.DetectedAt = record.DetectedAt.Format(time.RFC3339)
		s.hub.BroadcastJSON(record)
	}

	c.JSON(http.StatusOK, resp)
}

// saveUpload writes an accepted upload into the configured directory so the
// stored record points at a retrievable image. Returns the public path, or
// empty when saving is disabled or fails.
func (s *Server) saveUpload(data []byte, filename string) string {
	if s.config.UploadDir == "" {
		return ""
	}
	if filename == "" || !utils.IsImageFile(filename) {
		// The bytes decoded, so the name is just missing a usable extension.
		filename += ".jpg"
	}
	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), utils.SanitizeFilename(filename))
	if err := os.WriteFile(filepath.Join(s.config.UploadDir, name), data, 0644); err != nil {
		s.logger.Warn("Failed to save upload", "error", err)
		return ""
	}
	return "/uploads/" + name
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	filter := &store.Filter{
		Breed:       c.Query("breed"),
		Size:        c.Query("size"),
		MinWeightKg: queryFloat(c, "min_weight"),
		MaxWeightKg: queryFloat(c, "max_weight"),
		Limit:       queryInt(c, "limit", defaultListLimit),
		Offset:      queryInt(c, "offset", 0),
	}

	analyses, err := s.store.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list analyses: " + err.Error()})
		return
	}
	total, err := s.store.Count(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to count analyses: " + err.Error()})
		return
	}

	if analyses == nil {
		analyses = []store.Analysis{}
	}
	c.JSON(http.StatusOK, gin.H{
		"analyses": analyses,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid analysis id"})
		return
	}

	analysis, err := s.store.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load analysis: " + err.Error()})
		return
	}
	if analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("analysis %d not found", id)})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleDeleteAnalysis(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid analysis id"})
		return
	}

	analysis, err := s.store.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load analysis: " + err.Error()})
		return
	}
	if analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("analysis %d not found", id)})
		return
	}

	if err := s.store.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to delete analysis: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "message": "analysis deleted"})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to compute stats: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleLive upgrades the connection and parks it in the hub until the
// client goes away. The feed is push only; inbound messages are discarded.
func (s *Server) handleLive(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(512)

	s.hub.Register(conn)
	defer s.hub.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryFloat(c *gin.Context, name string) float64 {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
