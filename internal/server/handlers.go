package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragchat/internal/domain"
	genopenai "ragchat/internal/generation/openai"
	"ragchat/internal/service"
)

// handleHome returns the caller's chat settings, initialising the session.
func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessions.Get(sessionID(c)))
}

func (s *Server) handleModelInfo(c *gin.Context) {
	if s.models == nil {
		c.JSON(http.StatusOK, unknownModel("no text generation service configured"))
		return
	}
	info, err := s.models.ModelInfo(c.Request.Context())
	if err != nil {
		s.log.Warn("model info unavailable", zap.Error(err))
		c.JSON(http.StatusOK, unknownModel(err.Error()))
		return
	}
	c.JSON(http.StatusOK, info)
}

func unknownModel(reason string) gin.H {
	return gin.H{
		"error":          reason,
		"model_name":     "Unknown Model",
		"context_window": genopenai.FallbackContextWindow,
		"max_tokens":     genopenai.FallbackContextWindow,
	}
}

func (s *Server) handleProcessedFiles(c *gin.Context) {
	files := s.engine.SourceFiles()
	if files == nil {
		files = []domain.SourceFileRecord{}
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleSaveConfig(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request body"})
		return
	}
	settings, updated, err := applySettings(s.sessions.Get(sessionID(c)), body)
	if err == nil && updated {
		err = settings.Validate()
	}
	switch {
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
	case !updated:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "No valid configuration data provided"})
	default:
		s.sessions.Set(sessionID(c), settings)
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Configuration saved successfully"})
	}
}

// applySettings overlays the known keys of body onto settings. Numeric
// fields accept JSON numbers or numeric strings.
func applySettings(settings service.ChatSettings, body map[string]any) (service.ChatSettings, bool, error) {
	updated := false
	for key, v := range body {
		var err error
		switch key {
		case "system_prompt":
			settings.SystemPrompt = fmt.Sprint(v)
		case "temperature":
			settings.Temperature, err = toFloat32(v)
		case "top_p":
			settings.TopP, err = toFloat32(v)
		case "max_tokens":
			settings.MaxTokens, err = toInt(v)
		case "context_chunks":
			settings.ContextChunks, err = toInt(v)
		default:
			continue
		}
		if err != nil {
			return settings, false, fmt.Errorf("%s: %w", key, err)
		}
		updated = true
	}
	return settings, updated, nil
}

func toFloat32(v any) (float32, error) {
	switch x := v.(type) {
	case float64:
		return float32(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 32)
		return float32(f), err
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case float64:
		return int(x), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func (s *Server) handleResetConfig(c *gin.Context) {
	defaults := s.sessions.Reset(sessionID(c))
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Configuration reset to defaults",
		"config":  defaults,
	})
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// secureFilename reduces name to a safe base name made of ASCII letters,
// digits, dots, dashes and underscores.
func secureFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(strings.Join(strings.Fields(name), "_"), "")
	return strings.TrimLeft(name, "._-")
}

func (s *Server) allowedFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return ext != "" && slices.Contains(s.cfg.AllowedExtensions, ext)
}

func (s *Server) handleUpload(c *gin.Context) {
	tooLarge := gin.H{"error": fmt.Sprintf("File too large (limit %d bytes)", s.cfg.MaxUploadBytes)}
	if c.Request.ContentLength > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		s.log.Warn("no file part in request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}
	filename := secureFilename(header.Filename)
	if filename == "" || !s.allowedFile(filename) {
		s.log.Warn("invalid file type", zap.String("filename", header.Filename))
		c.JSON(http.StatusBadRequest, gin.H{"error": "File type not allowed"})
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.writeError(c, err)
		return
	}
	path := filepath.Join(s.cfg.UploadDir, filename)
	if err := c.SaveUploadedFile(header, path); err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.engine.IngestFile(c.Request.Context(), path, 0)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.log.Info("file upload processed",
		zap.String("filename", res.Filename),
		zap.Int("chunks", res.ChunkCount),
		zap.Int("pages", res.PageCount),
	)
	c.JSON(http.StatusOK, gin.H{
		"message":  "File uploaded successfully",
		"filename": res.Filename,
		"chunks":   res.ChunkCount,
		"pages":    res.PageCount,
	})
}

func (s *Server) handleChat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	answer, err := s.engine.Chat(c.Request.Context(), s.sessions.Get(sessionID(c)), req.Message)
	if err != nil {
		s.writeError(c, err)
		return
	}
	html, err := s.markdown.Render(answer)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": html})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
		K     *int   `json:"k"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
		return
	}
	k := s.sessions.Get(sessionID(c)).ContextChunks
	if req.K != nil {
		k = *req.K
	}

	results, err := s.engine.Search(c.Request.Context(), req.Query, k)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if results == nil {
		results = []service.Result{}
	}
	c.JSON(http.StatusOK, gin.H{
		"context": service.AssembleContext(results),
		"results": results,
	})
}

// writeError maps err to a status by its kind. Client errors carry the
// message; server-side failures are logged and answered generically.
func (s *Server) writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		status, msg = http.StatusBadRequest, err.Error()
	case domain.KindNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case domain.KindExtraction:
		status, msg = http.StatusUnprocessableEntity, "Could not extract text from document"
	case domain.KindEmbedding:
		status, msg = http.StatusServiceUnavailable, "Embedding service unavailable"
	case domain.KindGeneration:
		status, msg = http.StatusServiceUnavailable, "Failed to communicate with LLM API"
	}
	if status >= http.StatusInternalServerError || status == http.StatusUnprocessableEntity {
		s.log.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": msg})
}
