package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragserver/internal/config"
	"ragserver/internal/embedding/openai"
	"ragserver/internal/llm"
	"ragserver/internal/service"
	"ragserver/internal/tui"
	"ragserver/internal/vectorstore/memory"
)

// ragchat ingests local files into an in-memory store and answers questions
// about them interactively, using the same pipelines as the HTTP server.
func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML config file")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: ragchat [--config=config.yaml] file1.txt [file2.pdf ...]")
		os.Exit(1)
	}

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

	uploadDir, err := os.MkdirTemp("", "ragchat-")
	if err != nil {
		log.Fatalf("create work dir: %v", err)
	}
	defer os.RemoveAll(uploadDir)

	svc := service.New(embedder, memory.NewStore(), generator, service.Config{
		UploadDir:       uploadDir,
		PromptTemplate:  cfg.RAG.PromptTemplate,
		MaxContextChars: cfg.RAG.MaxContextChars,
		ChunkSize:       cfg.RAG.ChunkSize,
		ChunkOverlap:    cfg.RAG.ChunkOverlap,
		DefaultTopK:     cfg.RAG.DefaultTopK,
	})

	ctx := context.Background()
	totalChunks := 0
	for _, path := range inputs {
		res, err := svc.IngestFile(ctx, path)
		if err != nil {
			log.Fatalf("ingest %s failed: %v", path, err)
		}
		totalChunks += res.Chunks
	}
	summary := fmt.Sprintf("Ingested %d file(s) into %d chunks.", len(inputs), totalChunks)

	m := tui.New(svc, summary)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
