// Package agencyhub wires the agency hub from a configuration: stores, model
// providers, the capability registry, the runtime, the agency cache, the
// services and the HTTP API. Most deployments only call New and Run.
package agencyhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agencyhub/agency"
	"github.com/hupe1980/agencyhub/api"
	"github.com/hupe1980/agencyhub/config"
	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/internal/offload"
	"github.com/hupe1980/agencyhub/internal/tracing"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/model"
	anthropicmodel "github.com/hupe1980/agencyhub/model/anthropic"
	"github.com/hupe1980/agencyhub/model/bedrock"
	openaimodel "github.com/hupe1980/agencyhub/model/openai"
	"github.com/hupe1980/agencyhub/runtime"
	"github.com/hupe1980/agencyhub/service"
	"github.com/hupe1980/agencyhub/store/memory"
	"github.com/hupe1980/agencyhub/store/sqlite"
	"github.com/hupe1980/agencyhub/tool"
)

// Options override parts of the configuration-driven wiring.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// CheapModel backs descriptions and prompt invocations. Defaults to Model.
	CheapModel model.Model
	// Tools are registered next to the built-in tools.
	Tools  []tool.Tool
	Logger *logging.HubLogger
}

// Stores groups the configuration stores in use.
type Stores struct {
	Agencies core.AgencyStore
	Tools    core.ToolStore
	Skills   core.SkillStore
	Sessions core.SessionStore
}

// Hub is a fully wired agency hub.
type Hub struct {
	cfg      *config.Config
	logger   *logging.HubLogger
	stores   Stores
	registry *tool.Registry
	manager  *agency.Manager
	services api.Services
	server   *api.Server

	closers []func(context.Context) error
}

// New wires a Hub from cfg.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Hub, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &Hub{cfg: cfg}
	if err := h.init(ctx, opts); err != nil {
		_ = h.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return h, nil
}

func (h *Hub) init(ctx context.Context, opts Options) error {
	cfg := h.cfg

	h.logger = opts.Logger
	if h.logger == nil {
		level, err := logging.ParseLevel(cfg.Logger.Level)
		if err != nil {
			return err
		}
		h.logger = logging.NewLogger(&logging.LoggerConfig{
			Level:     level,
			Format:    cfg.Logger.Format,
			Output:    os.Stdout,
			AddSource: cfg.Logger.AddSource,
		})
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:  cfg.Tracer.Enabled,
		Exporter: cfg.Tracer.Exporter,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	h.closers = append(h.closers, shutdownTracing)

	if err := h.openStores(); err != nil {
		return err
	}

	agentModel, cheapModel, err := h.models(ctx, opts)
	if err != nil {
		return err
	}
	catalog := model.NewCatalog(agentModel)
	if cfg.LLM.Model != "" {
		catalog.Register(cfg.LLM.Model, agentModel)
	}
	if cfg.LLM.CheapModel != "" {
		catalog.Register(cfg.LLM.CheapModel, cheapModel)
	}

	h.registry = tool.NewRegistry(tool.Builtins(func(o *tool.BuiltinOptions) {
		o.Root = cfg.Tools.RootDir
		o.Model = cheapModel
		if cfg.Tools.MaxOutput > 0 {
			o.MaxOutput = cfg.Tools.MaxOutput
		}
		o.Logger = h.logger.WithComponent("tool")
	})...)
	for _, t := range opts.Tools {
		if err := h.registry.Register(t); err != nil {
			return err
		}
	}

	rt := runtime.New(catalog, func(o *runtime.Options) {
		o.MaxToolRounds = cfg.Runtime.MaxToolRounds
		o.MaxDepth = cfg.Runtime.MaxDepth
		o.MaxModelCalls = cfg.Runtime.MaxModelCalls
		o.MaxHistoryMessages = cfg.Runtime.MaxHistoryMessages
		o.ToolTimeout = cfg.Runtime.ToolTimeout
		o.Logger = h.logger.WithComponent("runtime")
	})

	pool := offload.New(cfg.Cache.Concurrency)
	factory := agency.NewFactory(h.stores.Agencies, h.registry, rt, func(o *agency.FactoryOptions) {
		o.Logger = h.logger
	})
	h.manager, err = agency.NewManager(factory, func(o *agency.ManagerOptions) {
		o.Capacity = cfg.Cache.Capacity
		o.BuildTimeout = cfg.Cache.BuildTimeout
		o.Pool = pool
		o.Logger = h.logger.WithComponent("agency")
	})
	if err != nil {
		return err
	}
	h.closers = append(h.closers, func(context.Context) error {
		h.manager.Close()
		return nil
	})

	withLogger := func(o *service.Options) { o.Logger = h.logger }
	exec := service.NewExecutionService(h.manager, func(o *service.ExecutionOptions) {
		o.TurnTimeout = cfg.Cache.TurnTimeout
		o.Pool = pool
		o.Logger = h.logger
	})
	h.services = api.Services{
		Agencies:  service.NewAgencyService(h.stores.Agencies, h.manager, withLogger),
		Sessions:  service.NewSessionService(h.stores.Agencies, h.stores.Sessions, h.manager, exec, withLogger),
		Execution: exec,
		Tools:     service.NewToolService(h.stores.Tools, h.registry, cheapModel, withLogger),
		Skills:    service.NewSkillService(h.stores.Skills, h.registry, cheapModel, withLogger),
	}

	if cfg.Templates.File != "" {
		if err := h.seedTemplates(ctx, cfg.Templates.File); err != nil {
			return err
		}
	}

	tokens := make([]api.Token, 0, len(cfg.Auth.Tokens))
	for _, t := range cfg.Auth.Tokens {
		tokens = append(tokens, api.Token{Token: t.Token, User: t.User()})
	}
	h.server = api.New(h.services, api.NewStaticTokenAuth(tokens...), func(o *api.Options) {
		o.Addr = cfg.Server.Addr
		o.ReadHeaderTimeout = cfg.Server.ReadHeaderTimeout
		o.CacheSize = h.manager.Len
		o.Logger = h.logger
	})

	h.logger.Info("agencyhub.ready",
		"storage", cfg.Storage.Driver,
		"provider", agentModel.Info().Provider,
		"tools", len(h.registry.Names()),
	)
	return nil
}

func (h *Hub) openStores() error {
	switch h.cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlite.Open(h.cfg.Storage.Path)
		if err != nil {
			return err
		}
		h.closers = append(h.closers, func(context.Context) error { return db.Close() })
		h.stores = Stores{
			Agencies: db.Agencies(),
			Tools:    db.Tools(),
			Skills:   db.Skills(),
			Sessions: db.Sessions(),
		}
	case "memory", "":
		h.stores = Stores{
			Agencies: memory.NewAgencyStore(),
			Tools:    memory.NewToolStore(),
			Skills:   memory.NewSkillStore(),
			Sessions: memory.NewSessionStore(),
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", h.cfg.Storage.Driver)
	}
	return nil
}

func (h *Hub) models(ctx context.Context, opts Options) (model.Model, model.Model, error) {
	llm := h.cfg.LLM

	agentModel := opts.Model
	if agentModel == nil {
		m, err := newProviderModel(ctx, llm, llm.Model)
		if err != nil {
			return nil, nil, err
		}
		agentModel = h.wrapModel(m)
	}

	cheapModel := opts.CheapModel
	switch {
	case cheapModel != nil:
	case opts.Model == nil && llm.CheapModel != "":
		m, err := newProviderModel(ctx, llm, llm.CheapModel)
		if err != nil {
			return nil, nil, err
		}
		cheapModel = h.wrapModel(m)
	default:
		cheapModel = agentModel
	}
	return agentModel, cheapModel, nil
}

func (h *Hub) wrapModel(m model.Model) model.Model {
	logged := model.WithLogging(m, h.logger.WithComponent("model"))
	b := h.cfg.LLM.Breaker
	if !b.Enabled {
		return logged
	}
	return model.NewCircuitBreaker(logged, func(o *model.BreakerOptions) {
		o.MaxFailures = b.MaxFailures
		o.Timeout = b.Timeout
		o.Logger = h.logger.WithComponent("model")
	})
}

func newProviderModel(ctx context.Context, llm config.LLMConfig, name string) (model.Model, error) {
	switch llm.Provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if name != "" {
				o.Model = name
			}
			o.Temperature = llm.Temperature
			o.MaxCompletionTokens = int64(llm.MaxTokens)
			if llm.APIKey != "" {
				o.RequestOptions = append(o.RequestOptions, option.WithAPIKey(llm.APIKey))
			}
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if name != "" {
				o.Model = anthropic.Model(name)
			}
			o.Temperature = llm.Temperature
			o.MaxTokens = int64(llm.MaxTokens)
			o.APIKey = llm.APIKey
		}), nil
	case "bedrock":
		return bedrock.NewModel(ctx, func(o *bedrock.Options) {
			if name != "" {
				o.ModelID = name
			}
			o.Temperature = llm.Temperature
			o.MaxTokens = llm.MaxTokens
		})
	case "mock":
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name, "mock"), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", llm.Provider)
	}
}

// seedTemplates stores shared templates. Existing records are overwritten.
func (h *Hub) seedTemplates(ctx context.Context, path string) error {
	tpl, err := config.LoadTemplates(path)
	if err != nil {
		return err
	}
	for _, a := range tpl.Agencies {
		if err := h.stores.Agencies.Save(ctx, a); err != nil {
			return fmt.Errorf("seed agency %s: %w", a.AgencyID, err)
		}
	}
	for _, t := range tpl.Tools {
		if err := h.stores.Tools.Save(ctx, t); err != nil {
			return fmt.Errorf("seed tool %s: %w", t.ToolID, err)
		}
	}
	for _, s := range tpl.Skills {
		if err := h.stores.Skills.Save(ctx, s); err != nil {
			return fmt.Errorf("seed skill %s: %w", s.ID, err)
		}
	}
	h.logger.Info("agencyhub.templates.seeded",
		"agencies", len(tpl.Agencies),
		"tools", len(tpl.Tools),
		"skills", len(tpl.Skills),
	)
	return nil
}

// Handler returns the HTTP handler of the API.
func (h *Hub) Handler() http.Handler { return h.server.Handler() }

// Server returns the API server.
func (h *Hub) Server() *api.Server { return h.server }

// Services returns the wired services.
func (h *Hub) Services() api.Services { return h.services }

// Manager returns the agency cache.
func (h *Hub) Manager() *agency.Manager { return h.manager }

// Stores returns the configuration stores.
func (h *Hub) Stores() Stores { return h.stores }

// Registry returns the capability registry.
func (h *Hub) Registry() *tool.Registry { return h.registry }

// Run serves the API until ctx is done, then releases all resources.
func (h *Hub) Run(ctx context.Context) error {
	err := h.server.Start(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, h.Close(shutdownCtx))
}

// Close releases resources in reverse order of acquisition.
func (h *Hub) Close(ctx context.Context) error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
