package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/generator"
	"ragqa/internal/generator/openai"
	apihttp "ragqa/internal/http"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/tokenizer"
	"ragqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		rebuild bool
		serve   bool
		addr    string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragqa/config.yaml if not provided)")
	flag.BoolVar(&rebuild, "rebuild", false, "Ignore caches and rebuild chunks and index")
	flag.BoolVar(&serve, "serve", false, "Serve the JSON API instead of the terminal UI")
	flag.StringVar(&addr, "addr", "", "Listen address for -serve (overrides server.addr)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, closeLog, err := newLogger(cfg.Log, cfg.Cache.Dir, !serve)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	// Assemble components
	seg, err := tokenizer.NewSegmenter()
	if err != nil {
		log.Fatalf("tokenizer init failed: %v", err)
	}
	tok := tokenizer.New(seg, tokenizer.LoadStopWords(cfg.Corpus.StopWords, logger), "")

	if cfg.Chunker.Type != "sentence" {
		log.Fatalf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var gen domain.Generator
	switch cfg.Generator.Type {
	case "openai":
		o := cfg.Generator.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:      o.BaseURL,
			APIKeyEnv:    o.APIKeyEnv,
			Model:        o.Model,
			MaxTokens:    o.MaxTokens,
			Temperature:  o.Temperature,
			SystemPrompt: o.SystemPrompt,
			Timeout:      time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries:   o.MaxRetries,
		}, logger)
		if err != nil {
			logger.Warn("answer generation disabled", "error", err)
			gen = generator.Disabled{Reason: err.Error()}
		} else {
			gen = client
		}
	case "none":
		gen = generator.Disabled{}
	default:
		log.Fatalf("unknown generator: %s", cfg.Generator.Type)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency":
		sum = summarizer.NewFrequencySummarizer(tok)
	case "none":
	default:
		log.Fatalf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	engine := service.New(service.Options{
		CorpusDir:      cfg.Corpus.Dir,
		CacheDir:       cfg.Cache.Dir,
		MaxChunkLength: cfg.Chunker.MaxChunkLength,
		Index: tfidf.Params{
			MaxFeatures: cfg.Index.MaxFeatures,
			MinDF:       cfg.Index.MinDF,
			MaxDF:       cfg.Index.MaxDF,
			NGramMin:    cfg.Index.NGramMin,
			NGramMax:    cfg.Index.NGramMax,
		},
		TopK:             cfg.Retrieval.TopK,
		Threshold:        cfg.Retrieval.SimilarityThreshold,
		SummarySentences: cfg.Summarizer.MaxSentences,
	}, tok, gen, sum, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rebuild {
		err = engine.Rebuild(ctx)
	} else {
		err = engine.Initialize(ctx)
	}
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}

	if serve {
		if addr == "" {
			addr = cfg.Server.Addr
		}
		if err := runServer(ctx, addr, engine, logger); err != nil {
			log.Fatalf("server failed: %v", err)
		}
		return
	}

	m := tui.New(engine, tok, cfg.Retrieval.TopK, cfg.Retrieval.SimilarityThreshold)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Fatal(err)
	}
}

// newLogger builds the slog logger. The terminal UI owns stdout, so in that
// mode records go to a file instead.
func newLogger(cfg config.LogConfig, cacheDir string, tuiMode bool) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	path := cfg.File
	if path == "" && tuiMode {
		path = filepath.Join(cacheDir, "ragqa.log")
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn, nil
}

func runServer(ctx context.Context, addr string, engine *service.Engine, logger *slog.Logger) error {
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           apihttp.NewRouter(&apihttp.Deps{Engine: engine, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
