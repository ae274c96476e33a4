package studymesh

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/config"
	"github.com/hupe1980/studymesh/memory"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/model/anthropic"
	"github.com/hupe1980/studymesh/model/gemini"
	"github.com/hupe1980/studymesh/model/openai"
	"github.com/hupe1980/studymesh/observability"
	"github.com/hupe1980/studymesh/planner"
	"github.com/hupe1980/studymesh/planner/sqlite"
	"github.com/hupe1980/studymesh/specialist"
)

// NewModel creates the backend selected by cfg. Definitions that name a
// model override cfg.Name.
func NewModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = cfg.APIKey
			if cfg.Temperature > 0 {
				o.Temperature = float32(cfg.Temperature)
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = cfg.APIKey
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.APIKey = cfg.APIKey
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case config.ProviderMock:
		return model.NewMockModel(cfg.Name, config.ProviderMock), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// App is a StudyMesh wired from configuration together with the resources
// it owns.
type App struct {
	*StudyMesh
	Config  *config.Config
	Planner planner.Store
}

// Close releases the planner store.
func (a *App) Close() error {
	if a.Planner == nil {
		return nil
	}
	return a.Planner.Close()
}

// AppOptions customizes NewFromConfig.
type AppOptions struct {
	// ModelFor overrides the model factory, e.g. to inject mocks.
	ModelFor func(def agent.Definition) (model.Model, error)
	// Planner overrides the store selected by cfg.Database.
	Planner planner.Store
	// Fetcher and Papers override the specialist collaborators.
	Fetcher specialist.PageFetcher
	Papers  specialist.PaperSearcher
	// Mesh options are applied after the configured ones.
	Mesh []func(o *Options)
}

// NewFromConfig builds the planner: stores, metrics, the agent catalog
// and one backend per model definition.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *AppOptions)) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	opts := AppOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := cfg.Logger()
	metrics := observability.NewMetrics("studymesh")

	store := opts.Planner
	if store == nil {
		if cfg.Database.Path != "" {
			s, err := sqlite.Open(cfg.Database.Path, func(o *sqlite.Options) { o.Logger = logger })
			if err != nil {
				return nil, fmt.Errorf("open planner database: %w", err)
			}
			store = s
		} else {
			store = planner.NewMemoryStore()
		}
	}

	defs, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	modelFor := opts.ModelFor
	if modelFor == nil {
		modelFor = func(def agent.Definition) (model.Model, error) {
			mc := cfg.Model
			if def.Model != "" {
				mc.Name = def.Model
			}
			return NewModel(ctx, mc)
		}
	}

	mem := memory.NewInMemoryStore()
	limiter := cfg.RateLimiter()

	graph, err := specialist.Build(defs, func(o *specialist.BuildOptions) {
		o.Deps = specialist.Deps{Store: store, Memory: mem, Fetcher: opts.Fetcher, Papers: opts.Papers}
		o.ModelFor = modelFor
		o.Graph = append(o.Graph, func(g *agent.GraphOptions) {
			g.MaxConcurrency = cfg.Agent.MaxConcurrency
			g.ModelOptions = append(g.ModelOptions, func(m *agent.ModelAgentOptions) {
				m.MaxToolRounds = cfg.Agent.MaxToolRounds
				m.MaxHistoryMessages = cfg.Agent.MaxHistoryMessages
				m.MaxParallelTools = cfg.Agent.MaxParallelTools
				m.Retry = cfg.RetryPolicy()
				m.RateLimiter = limiter
				m.Logger = logger
				m.Metrics = metrics
			})
			g.ParallelOptions = append(g.ParallelOptions, func(p *agent.ParallelAgentOptions) { p.Metrics = metrics })
			g.SequentialOptions = append(g.SequentialOptions, func(s *agent.SequentialAgentOptions) { s.Metrics = metrics })
		})
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	mesh := New(append([]func(o *Options){func(o *Options) {
		o.AppName = cfg.App
		o.MemoryStore = mem
		o.BridgeTimeout = cfg.Bridge.Timeout
		o.Logger = logger
		o.Metrics = metrics
	}}, opts.Mesh...)...)

	if err := mesh.RegisterGraph(graph); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("studymesh.app.ready", "agents", len(graph.Names()), "provider", cfg.Model.Provider, "database", cfg.Database.Path)

	return &App{StudyMesh: mesh, Config: cfg, Planner: store}, nil
}
