// Package config loads council configuration from a YAML file with
// environment-variable resolution for credentials.
//
// Configuration is loaded once at process start; the resulting values are
// plain data handed to council.New and the store constructors. API keys
// never live in the file itself: each provider section names the
// environment variable holding its key.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/council-go/council"
	"github.com/dshills/council-go/council/model"
	"github.com/dshills/council-go/council/model/anthropic"
	"github.com/dshills/council-go/council/model/google"
	"github.com/dshills/council-go/council/model/openai"
)

// File is the top-level configuration document.
//
// Example:
//
//	council:
//	  members:
//	    - llama-3.3-70b-versatile
//	    - claude-sonnet-4-20250514
//	    - gemini-1.5-flash
//	  chairman: llama-3.3-70b-versatile
//	  call_timeout: 5m
//	  max_retries: 2
//	  prior_turns: 5
//	providers:
//	  openai:
//	    api_key_env: GROQ_API_KEY
//	    base_url: https://api.groq.com/openai/v1
//	    models:
//	      - llama-3.3-70b-versatile
//	  anthropic:
//	    api_key_env: ANTHROPIC_API_KEY
//	    models:
//	      - claude-sonnet-4-20250514
//	  google:
//	    api_key_env: GOOGLE_API_KEY
//	    models:
//	      - gemini-1.5-flash
//	store:
//	  driver: sqlite
//	  dsn: ./council.db
type File struct {
	Council   Council   `yaml:"council"`
	Providers Providers `yaml:"providers"`
	Store     Store     `yaml:"store"`
}

// Council mirrors council.Config in YAML form.
type Council struct {
	Members                []string `yaml:"members"`
	Chairman               string   `yaml:"chairman"`
	CallTimeout            Duration `yaml:"call_timeout"`
	MaxRetries             int      `yaml:"max_retries"`
	PriorTurns             int      `yaml:"prior_turns"`
	ExcludeFailedReviewers bool     `yaml:"exclude_failed_reviewers"`
}

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("5m", "90s") as well as bare nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var ns int64
	if err := node.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(ns)
	return nil
}

// Providers holds one optional section per supported provider.
type Providers struct {
	OpenAI    *OpenAIProvider  `yaml:"openai"`
	Anthropic *GenericProvider `yaml:"anthropic"`
	Google    *GenericProvider `yaml:"google"`
}

// OpenAIProvider configures the OpenAI-compatible adapter. BaseURL points
// it at compatible endpoints such as Groq.
type OpenAIProvider struct {
	APIKeyEnv string   `yaml:"api_key_env"`
	BaseURL   string   `yaml:"base_url"`
	Models    []string `yaml:"models"`
}

// GenericProvider configures an adapter that needs only a key and a model
// list.
type GenericProvider struct {
	APIKeyEnv string   `yaml:"api_key_env"`
	Models    []string `yaml:"models"`
}

// Store selects and configures the conversation store.
type Store struct {
	// Driver is one of "memory", "sqlite", "mysql".
	Driver string `yaml:"driver"`

	// DSN is the sqlite file path or MySQL data source name. Unused for
	// memory.
	DSN string `yaml:"dsn"`
}

// Load reads and validates a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the document beyond what council.Config.Validate covers:
// every member must be served by exactly one configured provider, and each
// configured provider must name its key variable.
func (f *File) Validate() error {
	if err := f.CouncilConfig().Validate(); err != nil {
		return err
	}

	served := make(map[string]string)
	addModels := func(provider string, models []string) error {
		for _, m := range models {
			if prev, ok := served[m]; ok {
				return fmt.Errorf("model %q claimed by both %s and %s", m, prev, provider)
			}
			served[m] = provider
		}
		return nil
	}

	if p := f.Providers.OpenAI; p != nil {
		if p.APIKeyEnv == "" {
			return fmt.Errorf("providers.openai.api_key_env is not set")
		}
		if err := addModels("openai", p.Models); err != nil {
			return err
		}
	}
	if p := f.Providers.Anthropic; p != nil {
		if p.APIKeyEnv == "" {
			return fmt.Errorf("providers.anthropic.api_key_env is not set")
		}
		if err := addModels("anthropic", p.Models); err != nil {
			return err
		}
	}
	if p := f.Providers.Google; p != nil {
		if p.APIKeyEnv == "" {
			return fmt.Errorf("providers.google.api_key_env is not set")
		}
		if err := addModels("google", p.Models); err != nil {
			return err
		}
	}

	if len(served) > 0 {
		for _, member := range f.Council.Members {
			if _, ok := served[member]; !ok {
				return fmt.Errorf("council member %q is not served by any configured provider", member)
			}
		}
	}

	switch f.Store.Driver {
	case "", "memory":
	case "sqlite", "mysql":
		if f.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", f.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", f.Store.Driver)
	}
	return nil
}

// CouncilConfig converts the YAML council section to the engine's config
// value.
func (f *File) CouncilConfig() council.Config {
	return council.Config{
		Members:                f.Council.Members,
		Chairman:               f.Council.Chairman,
		CallTimeout:            time.Duration(f.Council.CallTimeout),
		MaxRetries:             f.Council.MaxRetries,
		PriorTurns:             f.Council.PriorTurns,
		ExcludeFailedReviewers: f.Council.ExcludeFailedReviewers,
	}
}

// NewClient builds a model.Client from the provider sections: one adapter
// per configured provider, joined by a Router keyed on model name. Keys are
// resolved from the environment at call time.
//
// The returned close function releases provider resources (currently the
// Gemini client) and is safe to call on a nil-provider configuration.
func (f *File) NewClient(ctx context.Context) (model.Client, func() error, error) {
	router := model.NewRouter()
	closers := []func() error{}
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	if p := f.Providers.OpenAI; p != nil {
		key, err := resolveKey(p.APIKeyEnv)
		if err != nil {
			return nil, nil, err
		}
		var opts []openai.Option
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		client := openai.New(key, opts...)
		for _, m := range p.Models {
			router.Route(m, client)
		}
	}

	if p := f.Providers.Anthropic; p != nil {
		key, err := resolveKey(p.APIKeyEnv)
		if err != nil {
			return nil, nil, err
		}
		client := anthropic.New(key)
		for _, m := range p.Models {
			router.Route(m, client)
		}
	}

	if p := f.Providers.Google; p != nil {
		key, err := resolveKey(p.APIKeyEnv)
		if err != nil {
			return nil, nil, err
		}
		client, err := google.New(ctx, key)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, client.Close)
		for _, m := range p.Models {
			router.Route(m, client)
		}
	}

	return router, closeAll, nil
}

func resolveKey(envVar string) (string, error) {
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is not set", envVar)
	}
	return key, nil
}
