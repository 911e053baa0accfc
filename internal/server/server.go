// Package server exposes the ingestion and question-answering pipelines over
// HTTP. Streaming endpoints speak text/event-stream with one JSON object per
// event; every failure after a stream has started is delivered in-band so the
// connection closes cleanly.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragserver/internal/domain"
	"ragserver/internal/service"
)

// RAG is the server-facing subset of the pipeline service.
type RAG interface {
	Ingest(ctx context.Context, filename string, content io.Reader) (service.IngestResult, error)
	Query(ctx context.Context, query string, topK int) (service.Answer, error)
	QueryStream(ctx context.Context, query string, topK int) (<-chan domain.AnswerEvent, error)
	ChatStream(ctx context.Context, query string) (<-chan domain.AnswerEvent, error)
}

// Server wraps a gin engine with the four pipeline routes.
type Server struct {
	svc    RAG
	engine *gin.Engine
}

func New(svc RAG) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), cors())
	s := &Server{svc: svc, engine: engine}

	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	engine.POST("/upload/", s.handleUpload)
	engine.POST("/chat-file/", s.handleChatFile)
	engine.POST("/chat-file-stream/", s.handleChatFileStream)
	engine.POST("/chat/", s.handleChat)
	return s
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart field 'file' is required"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("upload failed: %v", err)})
		return
	}
	defer f.Close()

	res, err := s.svc.Ingest(c.Request.Context(), header.Filename, f)
	if err != nil {
		abortWithError(c, err, "upload failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       res.ID,
		"filename": res.Filename,
		"message":  fmt.Sprintf("File uploaded and vectorized into %d chunks.", res.Chunks),
	})
}

func (s *Server) handleChatFile(c *gin.Context) {
	query := c.PostForm("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "form field 'query' is required"})
		return
	}
	answer, err := s.svc.Query(c.Request.Context(), query, topKParam(c))
	if err != nil {
		abortWithError(c, err, "chat-file failed")
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleChatFileStream(c *gin.Context) {
	query := c.PostForm("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "form field 'query' is required"})
		return
	}
	events, err := s.svc.QueryStream(c.Request.Context(), query, topKParam(c))
	if err != nil {
		abortWithError(c, err, "chat-file-stream failed")
		return
	}
	streamEvents(c, events)
}

func (s *Server) handleChat(c *gin.Context) {
	query := c.PostForm("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "form field 'query' is required"})
		return
	}
	events, err := s.svc.ChatStream(c.Request.Context(), query)
	if err != nil {
		abortWithError(c, err, "chat failed")
		return
	}
	streamEvents(c, events)
}

func topKParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultPostForm("n_results", "3"))
	if err != nil {
		return 3
	}
	return n
}

func abortWithError(c *gin.Context, err error, op string) {
	switch domain.CodeOf(err) {
	case domain.InvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case domain.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	default:
		slog.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("%s: %v", op, err)})
	}
}

// streamEvents writes each pipeline event as its own SSE frame, flushing
// after every one. Buffering headers are disabled so intermediaries do not
// batch deltas.
func streamEvents(c *gin.Context, events <-chan domain.AnswerEvent) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	for ev := range events {
		writeEvent(c.Writer, ev)
		c.Writer.Flush()
	}
}

func writeEvent(w io.Writer, ev domain.AnswerEvent) {
	var payload any
	switch {
	case ev.Err != "":
		payload = gin.H{"error": ev.Err}
	case ev.Done:
		payload = gin.H{"done": true, "sources": ev.Sources}
	default:
		payload = gin.H{"content": ev.Content}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode stream event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
