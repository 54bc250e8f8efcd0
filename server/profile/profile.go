// Package profile loads runtime configuration from environment variables and
// an optional .env file.
package profile

import (
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ModelSet names the model used at each call site.
type ModelSet struct {
	// Research drives the tool-calling loop.
	Research string
	// Classifier decides proceed vs inquire.
	Classifier string
	// Related generates follow-up questions; also used for auto-titling.
	Related string
}

// StrategyConfig selects the operating mode and the message transform applied
// at each generation call site. Values map onto engine.Strategy.
type StrategyConfig struct {
	// Mode is one of "standard", "tool-call-only", "single-shot".
	Mode string
	// LoopTransform, FinalizerTransform and RelatedTransform are each one of
	// "identity", "split-trailing-text", "collapse-to-answer".
	LoopTransform      string
	FinalizerTransform string
	RelatedTransform   string
	// MaxRounds caps loop iterations regardless of mode.
	MaxRounds int
}

// TracingConfig configures the external trace collector used by the feedback
// endpoint.
type TracingConfig struct {
	Enabled   bool
	Endpoint  string
	PublicKey string
	SecretKey string
}

// Profile is the resolved runtime configuration.
type Profile struct {
	Addr    string
	Driver  string
	DSN     string
	DataDir string

	OpenRouterAPIKey string
	OpenRouterURL    string
	Models           ModelSet
	Strategy         StrategyConfig

	// SearchMaxCrawl bounds concurrent page fetches during advanced search.
	SearchMaxCrawl int
	// SearchCrawlTimeoutSec is the per-page fetch timeout in seconds.
	SearchCrawlTimeoutSec int

	// EmbeddingModel enables the semantic source index when set, together
	// with EmbeddingAPIKey. EmbeddingURL points at an OpenAI-compatible
	// embeddings endpoint.
	EmbeddingModel  string
	EmbeddingURL    string
	EmbeddingAPIKey string

	Tracing TracingConfig
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Profile, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("openseek")
	v.AutomaticEnv()

	v.SetDefault("addr", ":8735")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "openseek.db")
	v.SetDefault("data_dir", ".openseek")
	v.SetDefault("openrouter_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("model_research", "openai/gpt-4o-mini")
	v.SetDefault("model_classifier", "openai/gpt-4o-mini")
	v.SetDefault("model_related", "openai/gpt-4o-mini")
	v.SetDefault("mode", "standard")
	v.SetDefault("loop_transform", "identity")
	v.SetDefault("finalizer_transform", "identity")
	v.SetDefault("related_transform", "identity")
	v.SetDefault("max_rounds", 6)
	v.SetDefault("search_max_crawl", 4)
	v.SetDefault("search_crawl_timeout_sec", 10)
	v.SetDefault("embedding_url", "https://api.openai.com/v1")
	v.SetDefault("tracing_enabled", false)

	p := &Profile{
		Addr:    v.GetString("addr"),
		Driver:  v.GetString("driver"),
		DSN:     v.GetString("dsn"),
		DataDir: v.GetString("data_dir"),

		OpenRouterAPIKey: v.GetString("openrouter_api_key"),
		OpenRouterURL:    v.GetString("openrouter_url"),
		Models: ModelSet{
			Research:   v.GetString("model_research"),
			Classifier: v.GetString("model_classifier"),
			Related:    v.GetString("model_related"),
		},
		Strategy: StrategyConfig{
			Mode:               v.GetString("mode"),
			LoopTransform:      v.GetString("loop_transform"),
			FinalizerTransform: v.GetString("finalizer_transform"),
			RelatedTransform:   v.GetString("related_transform"),
			MaxRounds:          v.GetInt("max_rounds"),
		},
		SearchMaxCrawl:        v.GetInt("search_max_crawl"),
		SearchCrawlTimeoutSec: v.GetInt("search_crawl_timeout_sec"),

		EmbeddingModel:  v.GetString("embedding_model"),
		EmbeddingURL:    v.GetString("embedding_url"),
		EmbeddingAPIKey: v.GetString("embedding_api_key"),
		Tracing: TracingConfig{
			Enabled:   v.GetBool("tracing_enabled"),
			Endpoint:  v.GetString("tracing_endpoint"),
			PublicKey: v.GetString("tracing_public_key"),
			SecretKey: v.GetString("tracing_secret_key"),
		},
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) validate() error {
	switch p.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return errors.Errorf("unknown driver %q", p.Driver)
	}
	switch p.Strategy.Mode {
	case "standard", "tool-call-only", "single-shot":
	default:
		return errors.Errorf("unknown operating mode %q", p.Strategy.Mode)
	}
	if p.Strategy.MaxRounds <= 0 {
		return errors.New("max_rounds must be positive")
	}
	return nil
}
