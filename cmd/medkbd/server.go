package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	medkb "github.com/canhui/medkb"
	"github.com/canhui/medkb/config"
	"github.com/canhui/medkb/kbstore"
	"github.com/canhui/medkb/retrieval"
	"github.com/canhui/medkb/taxonomy"
)

// Server HTTP 服务包装：路由注册、启动与优雅关闭
type Server struct {
	cfg    *config.Config
	engine *medkb.Engine
	logger *zap.Logger
	http   *http.Server
}

// NewServer 创建服务器
func NewServer(cfg *config.Config, engine *medkb.Engine, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger.With(zap.String("component", "server")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/retrieve", s.handleRetrieve)
	mux.HandleFunc("POST /v1/documents", s.handleAddDocuments)
	mux.HandleFunc("GET /v1/partitions", s.handleListPartitions)
	mux.HandleFunc("DELETE /v1/partitions/{key}", s.handleDeletePartition)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = rateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, handler)
	handler = loggingMiddleware(s.logger, handler)

	s.http = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Start 启动 HTTP 服务
func (s *Server) Start() error {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieval.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := s.engine.Retrieve(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// addDocumentsRequest 文档入库请求
type addDocumentsRequest struct {
	Department      string `json:"department"`
	DocumentType    string `json:"document_type"`
	DiseaseCategory string `json:"disease_category,omitempty"`
	Documents       []struct {
		Text     string            `json:"text"`
		Source   string            `json:"source,omitempty"`
		Title    string            `json:"title,omitempty"`
		Evidence string            `json:"evidence_level,omitempty"`
		Extra    map[string]string `json:"extra,omitempty"`
	} `json:"documents"`
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req addDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents must not be empty")
		return
	}

	chunks := make([]kbstore.Chunk, 0, len(req.Documents))
	for _, doc := range req.Documents {
		chunks = append(chunks, kbstore.NewChunk(doc.Text, taxonomy.Metadata{
			Source:        doc.Source,
			Title:         doc.Title,
			EvidenceLevel: taxonomy.EvidenceLevel(doc.Evidence),
			Extra:         doc.Extra,
		}))
	}

	if err := s.engine.AddDocuments(r.Context(), req.Department, req.DocumentType, req.DiseaseCategory, chunks); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": len(chunks)})
}

func (s *Server) handleListPartitions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListPartitions())
}

func (s *Server) handleDeletePartition(w http.ResponseWriter, r *http.Request) {
	// 各段交给引擎做别名归一，入库用的别名删除时同样可用
	raw := r.PathValue("key")
	parts := strings.Split(raw, "_")
	if len(parts) < 2 || len(parts) > 3 {
		writeError(w, http.StatusBadRequest, "malformed partition key: "+raw)
		return
	}
	disease := ""
	if len(parts) == 3 {
		disease = parts[2]
	}
	if err := s.engine.DeletePartition(r.Context(), parts[0], parts[1], disease); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": raw})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"store": s.engine.StoreStats(),
		"cache": s.engine.CacheStats(),
	})
}

// writeEngineError 把引擎错误码映射到 HTTP 状态码
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch taxonomy.CodeOf(err) {
	case taxonomy.ErrInvalidArgument:
		status = http.StatusBadRequest
	case taxonomy.ErrNotFound:
		status = http.StatusNotFound
	case taxonomy.ErrEmbeddingFailure, taxonomy.ErrLLMFailure:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
