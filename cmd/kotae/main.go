// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/store"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development), and a missing
// default file falls back to built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; OPENAI_API_KEY may come from the environment directly.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.Option{watcher.WithLogger(logger)}
		watch := watcher.NewWatcher(
			components.Ingestor,
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			watchOpts...,
		)
		if err := watch.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watch.Stop()
		go watch.SyncExistingFiles(watchCtx)
	}

	srv := server.NewServer(components.Ingestor, components.Answerer, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	result, err := uploadViaHTTP(*serverURL, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document ingested: %s (%d segments)\n", result.DocumentID, result.SegmentCount)
}

func uploadViaHTTP(serverURL, path string) (*models.IngestResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(serverURL+"/api/v1/documents", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	docID := fs.String("doc", "", "restrict retrieval to one document ID")
	topK := fs.Int("top-k", 0, "number of segments to retrieve (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}

	req := models.QueryRequest{Question: question, DocumentID: *docID, TopK: *topK}
	body, _ := json.Marshal(req)
	resp, err := http.Post(*serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Ask failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var result models.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Println(result.Answer)
		if len(result.Segments) > 0 {
			fmt.Println("\nSources:")
			for _, seg := range result.Segments {
				fmt.Printf("  [%d] %s: %s\n", seg.Ordinal, seg.ID, seg.Text)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/documents")
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Documents []models.DocumentInfo `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out.Documents); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(out.Documents) == 0 {
			fmt.Println("No documents.")
			return
		}
		for _, doc := range out.Documents {
			fmt.Printf("%s  %s  (%d segments, %s)\n",
				doc.ID, doc.Filename, doc.SegmentCount, doc.CreatedAt.Format(time.RFC3339))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)
	req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+docID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status struct {
		Documents      int    `json:"documents"`
		Segments       int    `json:"segments"`
		Dimensions     int    `json:"dimensions"`
		DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
		Config         struct {
			StorageBackend string `json:"storage_backend"`
			EmbeddingModel string `json:"embedding_model"`
			LLMModel       string `json:"llm_model"`
			ChunkMaxSize   int    `json:"chunk_max_size"`
			ChunkOverlap   int    `json:"chunk_overlap"`
			TopK           int    `json:"top_k"`
		} `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:        %d\n", status.Documents)
		fmt.Printf("segments:         %d\n", status.Segments)
		fmt.Printf("dimensions:       %d\n", status.Dimensions)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d\n", *status.DiskUsageBytes)
		}
		fmt.Println()
		fmt.Println("# configuration")
		fmt.Printf("storage_backend:  %s\n", status.Config.StorageBackend)
		fmt.Printf("embedding_model:  %s\n", status.Config.EmbeddingModel)
		fmt.Printf("llm_model:        %s\n", status.Config.LLMModel)
		fmt.Printf("chunk_max_size:   %d\n", status.Config.ChunkMaxSize)
		fmt.Printf("chunk_overlap:    %d\n", status.Config.ChunkOverlap)
		fmt.Printf("top_k:            %d\n", status.Config.TopK)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services for the server.
type Components struct {
	Store    store.Store
	Embedder embedding.Embedder
	Ingestor *ingest.Ingestor
	Answerer *answer.Answerer
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	storePath := cfg.StorePath()
	if dir := filepath.Dir(storePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	var st store.Store
	var err error
	switch cfg.Storage.Backend {
	case "sqlite":
		st, err = store.NewSQLiteStore(storePath)
	default:
		st, err = store.NewJSONStore(storePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	var embedder embedding.Embedder
	var completer llm.Completer
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, using mock embedding and echo completion")
		embedder = embedding.NewMockEmbedder(256)
		completer = llm.NewEchoCompleter()
	} else {
		openaiEmbedder, err := embedding.NewOpenAIEmbedder(apiKey, cfg.Embedding.Model)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = openaiEmbedder
		openaiCompleter, err := llm.NewOpenAICompleter(apiKey, cfg.LLM.Model)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to initialize completer: %w", err)
		}
		completer = openaiCompleter
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	ch, err := chunker.NewChunker(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	pipelineOpts := []ingest.Option{}
	answerOpts := []answer.Option{}
	if debug {
		pipelineOpts = append(pipelineOpts, ingest.WithLogger(logger))
		answerOpts = append(answerOpts, answer.WithLogger(logger))
	}
	ing := ingest.NewIngestor(extract.NewExtractor(), ch, embedder, st, pipelineOpts...)
	ans := answer.NewAnswerer(embedder, search.NewSearcher(st), completer, cfg.Search.TopK, answerOpts...)

	return &Components{
		Store:    st,
		Embedder: embedder,
		Ingestor: ing,
		Answerer: ans,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Document question answering over your own files

Usage:
  kotae server [flags]            Start the HTTP server
  kotae ingest [flags] <file>     Upload and ingest a document
  kotae ask [flags] <question>    Ask a question over ingested documents
  kotae list [flags]              List ingested documents
  kotae delete [flags] <id>       Delete a document
  kotae status [flags]            Show corpus and configuration status
  kotae version                   Show version
  kotae help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Client Flags (ingest, ask, list, delete, status):
  --server string    Server URL (default: http://localhost:8080)

Ask Flags:
  --doc string       Restrict retrieval to one document ID
  --top-k int        Number of segments to retrieve (0 = server default)
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ingest report.pdf
  kotae ask what were the quarterly results?
  kotae ask --doc report_pdf_1700000000000 "what is the revenue?"
  kotae list
  kotae delete report_pdf_1700000000000
  kotae status --output json`)
}
