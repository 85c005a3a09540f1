package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/davidahmann/counterpoint/internal/api"
	"github.com/davidahmann/counterpoint/internal/archive"
	"github.com/davidahmann/counterpoint/internal/auth"
	"github.com/davidahmann/counterpoint/internal/config"
	"github.com/davidahmann/counterpoint/internal/generation"
	"github.com/davidahmann/counterpoint/internal/language"
	"github.com/davidahmann/counterpoint/internal/logging"
	"github.com/davidahmann/counterpoint/internal/policy"
	"github.com/davidahmann/counterpoint/internal/safety"
	"github.com/davidahmann/counterpoint/internal/tablestore/backend"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

type envFn func(string) string
type listenFn func(*http.Server) error

// serverFactory builds the server; the closer releases its store.
type serverFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*http.Server, io.Closer, error)

func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*http.Server, io.Closer, error) {
	var thresholds api.ThresholdSource = api.StaticThresholds(policy.DefaultThresholds())
	if cfg.ThresholdsPath != "" {
		watcher, err := policy.NewWatcher(cfg.ThresholdsPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("thresholds: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("threshold watcher stopped", zap.Error(err))
			}
		}()
		thresholds = watcher
	}

	store, closer, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	archiver, err := archive.Open(cfg.Archive)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}

	svc := &api.Service{
		Store:      store,
		Archiver:   archiver,
		Thresholds: thresholds,
		Blocklists: cfg.Safety.Blocklists,
		Partition:  cfg.Store.Partition,
		Logger:     logger,
	}

	params := generationParams(cfg.Generation)
	switch cfg.Generation.Provider {
	case config.ProviderGemini:
		if cfg.Generation.APIKey != "" {
			gen, err := generation.NewGemini(ctx, cfg.Generation.APIKey, cfg.Generation.Deployment, params)
			if err != nil {
				_ = closer.Close()
				return nil, nil, err
			}
			svc.Generator = gen
		}
	default:
		if cfg.Generation.Endpoint != "" && cfg.Generation.APIKey != "" {
			svc.Generator = generation.NewAzureOpenAI(cfg.Generation.Endpoint, cfg.Generation.Deployment, cfg.Generation.APIKey, cfg.Generation.APIVersion, params)
		}
	}
	if cfg.Language.Endpoint != "" && cfg.Language.APIKey != "" {
		svc.Analyzer = language.NewClient(cfg.Language.Endpoint, cfg.Language.APIKey, cfg.Language.APIVersion)
	}
	if cfg.Safety.Endpoint != "" && cfg.Safety.APIKey != "" {
		svc.Detector = safety.NewClient(cfg.Safety.Endpoint, cfg.Safety.APIKey, cfg.Safety.APIVersion)
	}

	h := &api.Handler{
		Auth:    &auth.TokenAuthenticator{Token: cfg.APIToken},
		Service: svc,
	}
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}, closer, nil
}

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("counterpoint-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to counterpoint config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := firstNonEmpty(*configPath, getenv("COUNTERPOINT_CONFIG_PATH"))

	var cfg config.Config
	if cfgFile != "" {
		loaded, err := config.Read(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyEnv(&cfg, getenv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, closer, err := factory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	logger.Info("counterpoint-gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("store", cfg.Store.Driver),
		zap.String("generation", cfg.Generation.Provider))
	if err := listen(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// applyEnv layers COUNTERPOINT_* variables over the file, then falls back to the
// variable names earlier deployments used.
func applyEnv(cfg *config.Config, getenv envFn) {
	cfg.ListenAddr = firstNonEmpty(getenv("COUNTERPOINT_LISTEN_ADDR"), cfg.ListenAddr, config.DefaultListenAddr)
	cfg.APIToken = firstNonEmpty(getenv("COUNTERPOINT_API_TOKEN"), cfg.APIToken)
	cfg.ThresholdsPath = firstNonEmpty(getenv("COUNTERPOINT_THRESHOLDS_PATH"), cfg.ThresholdsPath)
	cfg.Log.Level = firstNonEmpty(getenv("COUNTERPOINT_LOG_LEVEL"), cfg.Log.Level)

	cfg.Generation.Provider = firstNonEmpty(getenv("COUNTERPOINT_GENERATION_PROVIDER"), cfg.Generation.Provider)
	cfg.Generation.Endpoint = firstNonEmpty(getenv("COUNTERPOINT_GENERATION_ENDPOINT"), cfg.Generation.Endpoint, getenv("ENDPOINT_URL"))
	cfg.Generation.Deployment = firstNonEmpty(getenv("COUNTERPOINT_GENERATION_DEPLOYMENT"), cfg.Generation.Deployment, getenv("DEPLOYMENT_NAME"))
	cfg.Generation.APIKey = firstNonEmpty(getenv("COUNTERPOINT_GENERATION_API_KEY"), cfg.Generation.APIKey, getenv("AZURE_OPENAI_API_KEY"))

	cfg.Language.Endpoint = firstNonEmpty(getenv("COUNTERPOINT_LANGUAGE_ENDPOINT"), cfg.Language.Endpoint, getenv("LANGUAGE_SERVICE_ENDPOINT"))
	cfg.Language.APIKey = firstNonEmpty(getenv("COUNTERPOINT_LANGUAGE_API_KEY"), cfg.Language.APIKey, getenv("LANGUAGE_SERVICE_KEY"))

	cfg.Safety.Endpoint = firstNonEmpty(getenv("COUNTERPOINT_SAFETY_ENDPOINT"), cfg.Safety.Endpoint, getenv("MODERATOR_ENDPOINT"))
	cfg.Safety.APIKey = firstNonEmpty(getenv("COUNTERPOINT_SAFETY_API_KEY"), cfg.Safety.APIKey, getenv("MODERATOR_API_KEY"))

	cfg.Store.Driver = firstNonEmpty(getenv("COUNTERPOINT_STORE_DRIVER"), cfg.Store.Driver)
	cfg.Store.DSN = firstNonEmpty(getenv("COUNTERPOINT_STORE_DSN"), cfg.Store.DSN)
	if conn := getenv("TABLE_STORAGE_CONN_STRING"); conn != "" && cfg.Store.DSN == "" && (cfg.Store.Driver == "" || cfg.Store.Driver == "aztable") {
		cfg.Store.Driver = "aztable"
		cfg.Store.DSN = conn
	}
}

// generationParams fills unset values from generation.DefaultParams.
func generationParams(gc config.GenerationConfig) generation.Params {
	params := generation.DefaultParams()
	if gc.MaxTokens > 0 {
		params.MaxTokens = gc.MaxTokens
	}
	if gc.Temperature != nil {
		params.Temperature = *gc.Temperature
	}
	if gc.TopP != nil {
		params.TopP = *gc.TopP
	}
	return params
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
