// Package config resolves gradekit settings from flags, GRADEKIT_*
// environment variables and an optional gradekit.yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/gradekit/internal/llm"
)

// Flag names shared between the CLI and the viper keys.
const (
	FlagConfig        = "config"
	FlagDB            = "db"
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagLLMProvider   = "llm-provider"
	FlagLLMModel      = "llm-model"
	FlagLLMBaseURL    = "llm-base-url"
	FlagVisionModel   = "vision-model"
	FlagLLMTimeout    = "llm-timeout"
	FlagLLMAttempts   = "llm-attempts"
	FlagTesseract     = "tesseract"
	FlagOCRLang       = "ocr-lang"
	FlagOCRTimeout    = "ocr-timeout"
	FlagLowConfidence = "low-confidence"
	FlagWorkers       = "workers"
	FlagSummary       = "summary"
)

// Config is the resolved runtime configuration.
type Config struct {
	DBPath    string
	LogLevel  string
	LogFormat string

	// LLMConfigured is false when no provider has credentials. The
	// adapters are then left unset and report not configured.
	LLM           llm.Config
	LLMConfigured bool

	Tesseract     TesseractConfig
	LowConfidence float64
	Workers       int
	Summary       bool
}

// TesseractConfig configures the local OCR fallback.
type TesseractConfig struct {
	Binary  string
	Lang    string
	Timeout time.Duration
}

// RegisterFlags adds the persistent flags every command understands.
func RegisterFlags(f *pflag.FlagSet) {
	f.String(FlagConfig, "", "Path to a gradekit.yaml config file")
	f.String(FlagDB, "", "Path to SQLite database file (overrides GRADEKIT_DB env var)")
	f.String(FlagLogLevel, "info", "Log level (debug, info, warn, error)")
	f.String(FlagLogFormat, "text", "Log format (text, json)")
	f.String(FlagLLMProvider, "", "LLM provider (dashscope, openai, anthropic, gemini, openrouter); empty probes API key env vars")
	f.String(FlagLLMModel, "", "Text model for subjective scoring and summaries")
	f.String(FlagLLMBaseURL, "", "Base URL override for OpenAI-compatible providers")
	f.String(FlagVisionModel, "", "Vision model for scan recognition")
	f.Duration(FlagLLMTimeout, 30*time.Second, "Timeout for a single LLM call")
	f.Int(FlagLLMAttempts, 2, "Attempts per LLM call, including the first")
	f.String(FlagTesseract, "tesseract", "Tesseract binary for the local OCR fallback")
	f.String(FlagOCRLang, "chi_sim+eng", "Tesseract language packs")
	f.Duration(FlagOCRTimeout, 20*time.Second, "Timeout for one local OCR run")
	f.Float64(FlagLowConfidence, 0.5, "Recognition confidence below which responses are flagged for review")
	f.Int(FlagWorkers, 4, "Submissions graded concurrently")
	f.Bool(FlagSummary, true, "Generate an AI summary per submission")
}

// New binds flags and environment to a fresh viper instance and reads
// the config file if one is found.
func New(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix("GRADEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(FlagConfig); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gradekit")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/gradekit")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}
	return v
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DBPath:    v.GetString(FlagDB),
		LogLevel:  v.GetString(FlagLogLevel),
		LogFormat: v.GetString(FlagLogFormat),
		Tesseract: TesseractConfig{
			Binary:  v.GetString(FlagTesseract),
			Lang:    v.GetString(FlagOCRLang),
			Timeout: v.GetDuration(FlagOCRTimeout),
		},
		LowConfidence: v.GetFloat64(FlagLowConfidence),
		Workers:       v.GetInt(FlagWorkers),
		Summary:       v.GetBool(FlagSummary),
	}
	if cfg.LowConfidence < 0 || cfg.LowConfidence > 1 {
		return Config{}, fmt.Errorf("%s must be within [0, 1], got %g", FlagLowConfidence, cfg.LowConfidence)
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", FlagWorkers, cfg.Workers)
	}

	llmCfg, ok := resolveLLM(v)
	if ok {
		llmCfg = llmCfg.WithModel(v.GetString(FlagLLMModel))
		if vm := v.GetString(FlagVisionModel); vm != "" {
			llmCfg.VisionModel = vm
		}
		if d := v.GetDuration(FlagLLMTimeout); d > 0 {
			llmCfg.Timeout = d
		}
		if n := v.GetInt(FlagLLMAttempts); n > 0 {
			llmCfg.Retry.MaxAttempts = n
		}
		if err := llmCfg.Validate(); err != nil {
			if !errors.Is(err, llm.ErrNotConfigured) {
				return Config{}, err
			}
			ok = false
		}
	}
	cfg.LLM = llmCfg
	cfg.LLMConfigured = ok
	return cfg, nil
}

// resolveLLM uses the explicit provider when one is set and otherwise
// probes well-known API key variables.
func resolveLLM(v *viper.Viper) (llm.Config, bool) {
	provider := v.GetString(FlagLLMProvider)
	if provider == "" {
		return llm.DiscoverConfig()
	}

	cfg := llm.DefaultConfig()
	cfg.Provider = provider
	base := v.GetString(FlagLLMBaseURL)
	switch provider {
	case "dashscope":
		cfg.DashScope.APIKey = firstNonEmpty(v.GetString("dashscope-api-key"), os.Getenv("DASHSCOPE_API_KEY"), os.Getenv("QWEN_API_KEY"))
		cfg.DashScope.BaseURL = base
		cfg.VisionModel = "qwen3-vl-plus"
	case "openai":
		cfg.OpenAI.APIKey = firstNonEmpty(v.GetString("openai-api-key"), os.Getenv("OPENAI_API_KEY"))
		cfg.OpenAI.BaseURL = base
	case "anthropic":
		cfg.Anthropic.APIKey = firstNonEmpty(v.GetString("anthropic-api-key"), os.Getenv("ANTHROPIC_API_KEY"))
	case "gemini":
		cfg.Gemini.APIKey = firstNonEmpty(v.GetString("gemini-api-key"), os.Getenv("GEMINI_API_KEY"))
	case "openrouter":
		cfg.OpenRouter.APIKey = firstNonEmpty(v.GetString("openrouter-api-key"), os.Getenv("OPENROUTER_API_KEY"))
		cfg.OpenRouter.BaseURL = base
	}
	return cfg, true
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}

// SetupLogging installs the default slog logger for the given level and
// format.
func SetupLogging(w io.Writer, level, format string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}
