package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ragserver/internal/config"
	"ragserver/internal/domain"
	"ragserver/internal/embedding/openai"
	"ragserver/internal/llm"
	"ragserver/internal/server"
	"ragserver/internal/service"
	"ragserver/internal/vectorstore/memory"
	"ragserver/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	setupLogging()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	embedder := openai.NewClient(openai.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey(),
		Model:   cfg.LLM.EmbeddingModel,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})

	generator := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey(),
		Model:       cfg.LLM.ChatModel,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})

	var store domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory", "":
		store = memory.NewStore()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		store = qdrant.NewStore(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	svc := service.New(embedder, store, generator, service.Config{
		UploadDir:       cfg.Server.UploadDir,
		PromptTemplate:  cfg.RAG.PromptTemplate,
		MaxContextChars: cfg.RAG.MaxContextChars,
		ChunkSize:       cfg.RAG.ChunkSize,
		ChunkOverlap:    cfg.RAG.ChunkOverlap,
		DefaultTopK:     cfg.RAG.DefaultTopK,
	})

	slog.Info("starting server", "address", cfg.Server.Address, "store", cfg.VectorStore.Type)
	if err := server.New(svc).Run(cfg.Server.Address); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
