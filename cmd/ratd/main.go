// Command ratd is the ratatoskr gateway daemon entry point. It loads
// configuration, wires the configured provider sources into a
// [gateway.Gateway], and prints a startup summary. No transport (gRPC or
// otherwise) is wired here — per the scope of this module, a caller embeds
// [gateway.Gateway] directly or fronts it with a transport of its own.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/emesal/ratatoskr/internal/config"
	"github.com/emesal/ratatoskr/internal/dispatch"
	"github.com/emesal/ratatoskr/internal/modelregistry"
	"github.com/emesal/ratatoskr/internal/telemetry"
	"github.com/emesal/ratatoskr/pkg/gateway"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/source/anyllm"
	"github.com/emesal/ratatoskr/pkg/source/huggingface"
	"github.com/emesal/ratatoskr/pkg/source/openai"
	"github.com/emesal/ratatoskr/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	updateRegistry := flag.Bool("update-registry", false, "fetch the latest remote model registry payload before starting, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ratd: config file %q not found — pass -config with the path to a YAML configuration file\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ratd: %v\n", err)
		}
		return 1
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ratd: invalid config: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	secrets, err := config.LoadSecrets()
	if err != nil {
		slog.Error("failed to load secrets", "err", err)
		return 1
	}

	cachePath := cfg.Registry.CachePath
	if cachePath == "" {
		cachePath = modelregistry.DefaultCachePath()
	}
	remoteURL := cfg.Registry.RemoteURL
	if remoteURL == "" {
		remoteURL = modelregistry.DefaultRegistryURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *updateRegistry {
		slog.Info("fetching remote model registry", "url", remoteURL, "cache_path", cachePath)
		if _, err := modelregistry.UpdateRegistry(ctx, http.DefaultClient, remoteURL, cachePath); err != nil {
			slog.Error("update-registry failed", "err", err)
			return 1
		}
		slog.Info("registry cache updated", "cache_path", cachePath)
		return 0
	}

	cachedRemote, err := modelregistry.LoadCachedRemote(cachePath)
	if err != nil {
		slog.Error("failed to load cached registry", "cache_path", cachePath, "err", err)
		return 1
	}

	metrics, shutdownMetrics, err := newMetrics()
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	gw, err := buildGateway(cfg, secrets, cachedRemote, metrics)
	if err != nil {
		slog.Error("failed to build gateway", "err", err)
		return 1
	}

	printStartupSummary(cfg, gw)
	slog.Info("gateway ready — press Ctrl+C to shut down")

	<-ctx.Done()

	slog.Info("shutdown signal received, goodbye")
	return 0
}

// ── Gateway wiring ─────────────────────────────────────────────────────────

// buildGateway assembles a gateway.Gateway from cfg: the Builder's own
// options plus every provider source named in cfg.Providers, resolved in
// priority order (index 0 tried first per capability).
func buildGateway(cfg *config.Config, secrets *config.Secrets, cachedRemote *types.RemoteRegistryPayload, metrics *telemetry.Metrics) (*gateway.Gateway, error) {
	b := gateway.NewBuilder().
		WithValidationPolicy(cfg.Validation.ToTypes()).
		WithRetryConfig(cfg.Retry.ToTypes()).
		WithDiscoveryConfig(cfg.Discovery.ToTypes()).
		WithPresets(cfg.Registry.PresetTableEntries()).
		WithMetrics(metrics)
	if cfg.Server.StreamBufferSize > 0 {
		b = b.WithStreamBufferSize(cfg.Server.StreamBufferSize)
	}
	if cfg.Cache.Enabled {
		b = b.WithResponseCache(cfg.Cache.ToTypes())
	}
	if cachedRemote != nil {
		b = b.WithCachedRemote(cachedRemote)
	}
	gw := b.Build()

	retryCfg := cfg.Retry.ToTypes()

	for _, entry := range cfg.Providers.Chat {
		src, err := newChatSource(entry, secrets)
		if err != nil {
			return nil, fmt.Errorf("chat provider %q: %w", entry.Name, err)
		}
		gw.ChatRegistry().AddSource(src, gateway.RetryConfigPtr(retryCfg, true), breakerFor(entry))
		slog.Info("registered chat source", "name", entry.Name)
	}
	for _, entry := range cfg.Providers.Generate {
		src, err := newGenerateSource(entry, secrets)
		if err != nil {
			return nil, fmt.Errorf("generate provider %q: %w", entry.Name, err)
		}
		gw.GenerateRegistry().AddSource(src, gateway.RetryConfigPtr(retryCfg, true), breakerFor(entry))
		slog.Info("registered generate source", "name", entry.Name)
	}
	for _, entry := range cfg.Providers.Embed {
		src, err := newEmbedSource(entry, secrets)
		if err != nil {
			return nil, fmt.Errorf("embed provider %q: %w", entry.Name, err)
		}
		gw.EmbeddingRegistry().AddSource(src, gateway.RetryConfigPtr(retryCfg, true), breakerFor(entry))
		slog.Info("registered embed source", "name", entry.Name)
	}
	for _, entry := range cfg.Providers.NLI {
		src, err := newNLISource(entry, secrets)
		if err != nil {
			return nil, fmt.Errorf("nli provider %q: %w", entry.Name, err)
		}
		gw.NLIRegistry().AddSource(src, gateway.RetryConfigPtr(retryCfg, true), breakerFor(entry))
		slog.Info("registered nli source", "name", entry.Name)
	}
	for _, entry := range cfg.Providers.Classify {
		src, err := newClassifySource(entry, secrets)
		if err != nil {
			return nil, fmt.Errorf("classify provider %q: %w", entry.Name, err)
		}
		gw.ClassifyRegistry().AddSource(src, breakerFor(entry))
		slog.Info("registered classify source", "name", entry.Name)
	}
	for _, entry := range cfg.Providers.Stance {
		src, err := newStanceSource(entry, secrets)
		if err != nil {
			return nil, fmt.Errorf("stance provider %q: %w", entry.Name, err)
		}
		gw.StanceRegistry().AddSource(src, breakerFor(entry))
		slog.Info("registered stance source", "name", entry.Name)
	}

	return gw, nil
}

func breakerFor(entry config.ProviderEntry) *dispatch.CircuitBreakerConfig {
	if entry.CircuitBreaker == nil {
		return nil
	}
	return entry.CircuitBreaker.ToTypes(entry.Name)
}

// newChatSource and newGenerateSource share backend selection: "openai" uses
// the dedicated openai.Source (full Chat/Generate/Embed parity with the
// official SDK), everything else goes through the any-llm-go backend named
// by entry.Name (anthropic, gemini, ollama, deepseek, mistral, groq,
// llamacpp, llamafile).
func newChatSource(entry config.ProviderEntry, secrets *config.Secrets) (source.ChatSource, error) {
	apiKey := secrets.APIKey(entry)
	if entry.Name == "openai" {
		return openai.New(apiKey, entry.DefaultModel, "", openaiOpts(entry)...)
	}
	return anyllm.New(entry.Name, entry.DefaultModel, anyllmOpts(entry, apiKey)...)
}

func newGenerateSource(entry config.ProviderEntry, secrets *config.Secrets) (source.GenerateSource, error) {
	apiKey := secrets.APIKey(entry)
	if entry.Name == "openai" {
		return openai.New(apiKey, entry.DefaultModel, "", openaiOpts(entry)...)
	}
	return anyllm.New(entry.Name, entry.DefaultModel, anyllmOpts(entry, apiKey)...)
}

func newEmbedSource(entry config.ProviderEntry, secrets *config.Secrets) (source.EmbeddingSource, error) {
	apiKey := secrets.APIKey(entry)
	switch entry.Name {
	case "openai":
		return openai.New(apiKey, "", entry.DefaultModel, openaiOpts(entry)...)
	case "huggingface":
		return huggingface.New(apiKey, huggingfaceOpts(entry)...)
	default:
		return nil, fmt.Errorf("unsupported embed provider %q", entry.Name)
	}
}

func newNLISource(entry config.ProviderEntry, secrets *config.Secrets) (source.NLISource, error) {
	if entry.Name != "huggingface" {
		return nil, fmt.Errorf("unsupported nli provider %q (only huggingface)", entry.Name)
	}
	return huggingface.New(secrets.APIKey(entry), huggingfaceOpts(entry)...)
}

func newClassifySource(entry config.ProviderEntry, secrets *config.Secrets) (source.ClassifySource, error) {
	if entry.Name != "huggingface" {
		return nil, fmt.Errorf("unsupported classify provider %q (only huggingface)", entry.Name)
	}
	return huggingface.New(secrets.APIKey(entry), huggingfaceOpts(entry)...)
}

func newStanceSource(entry config.ProviderEntry, secrets *config.Secrets) (source.StanceSource, error) {
	if entry.Name != "huggingface" {
		return nil, fmt.Errorf("unsupported stance provider %q (only huggingface)", entry.Name)
	}
	return huggingface.New(secrets.APIKey(entry), huggingfaceOpts(entry)...)
}

func openaiOpts(entry config.ProviderEntry) []openai.Option {
	var opts []openai.Option
	if entry.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	}
	return opts
}

func huggingfaceOpts(entry config.ProviderEntry) []huggingface.Option {
	var opts []huggingface.Option
	if entry.BaseURL != "" {
		opts = append(opts, huggingface.WithBaseURL(entry.BaseURL))
	}
	return opts
}

func anyllmOpts(entry config.ProviderEntry, apiKey string) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if apiKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(apiKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return opts
}

// ── Metrics ────────────────────────────────────────────────────────────────

// newMetrics wires a Prometheus-backed MeterProvider, adapted from the
// teacher's internal/observe.InitProvider but scoped to metrics only — this
// module has no tracing surface to initialise.
func newMetrics() (*telemetry.Metrics, func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName("ratatoskr")),
	)
	if err != nil {
		return nil, nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	m, err := telemetry.NewMetrics(mp)
	if err != nil {
		return nil, nil, err
	}
	return m, mp.Shutdown, nil
}

// ── Startup summary ────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, gw *gateway.Gateway) {
	caps := gw.Capabilities().List()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         ratatoskr — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  chat sources     : %-18d ║\n", len(gw.ChatRegistry().ProviderNames()))
	fmt.Printf("║  generate sources : %-18d ║\n", len(gw.GenerateRegistry().ProviderNames()))
	fmt.Printf("║  embed sources    : %-18d ║\n", len(gw.EmbeddingRegistry().ProviderNames()))
	fmt.Printf("║  nli sources      : %-18d ║\n", len(gw.NLIRegistry().ProviderNames()))
	fmt.Printf("║  classify sources : %-18d ║\n", len(gw.ClassifyRegistry().ProviderNames()))
	fmt.Printf("║  stance sources   : %-18d ║\n", len(gw.StanceRegistry().ProviderNames()))
	fmt.Printf("║  models known     : %-18d ║\n", gw.ModelRegistry().Len())
	fmt.Printf("║  capabilities     : %-18d ║\n", len(caps))
	fmt.Printf("║  validation policy: %-18s ║\n", cfg.Validation.Policy)
	fmt.Printf("║  response cache    : %-17t ║\n", cfg.Cache.Enabled)
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ─────────────────────────────────────────────────────────────────

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
