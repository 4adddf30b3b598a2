// Package pipeline builds the oracle stages from configuration. The worker
// manager and the CLI share it so both run identical components.
package pipeline

import (
	"fmt"
	"time"

	"bureaucracy-oracle/internal/common/config"
	"bureaucracy-oracle/internal/common/database"
	"bureaucracy-oracle/internal/common/logger"
	"bureaucracy-oracle/internal/confidence"
	"bureaucracy-oracle/internal/llm"
	"bureaucracy-oracle/internal/prompts"
	"bureaucracy-oracle/internal/search"
	answerspecialist "bureaucracy-oracle/internal/workers/oracle/answer-specialist"
	auditresponse "bureaucracy-oracle/internal/workers/oracle/audit-response"
	formatresponse "bureaucracy-oracle/internal/workers/oracle/format-response"
	processquestion "bureaucracy-oracle/internal/workers/oracle/process-question"
	routequestion "bureaucracy-oracle/internal/workers/oracle/route-question"
	"bureaucracy-oracle/pkg/registry"

	"go.opentelemetry.io/otel/trace"
)

// Options override collaborators normally built from configuration.
type Options struct {
	// Backend replaces the OpenRouter client.
	Backend llm.Backend
	// SearchBackend replaces the configured search backend.
	SearchBackend search.Backend
	Tracer        trace.Tracer
	// Recorder receives per-question metrics.
	Recorder processquestion.Recorder
}

// Components is one fully wired pipeline. The search cache inside Search is
// the single instance shared by every specialist call of the process.
type Components struct {
	Registry   *registry.Registry
	Prompts    *prompts.Store
	Backend    llm.Backend
	Search     *search.Provider
	Elastic    *database.ElasticsearchClient
	Calculator *confidence.Calculator

	Router       *routequestion.Handler
	Specialist   *answerspecialist.Handler
	Auditor      *auditresponse.Handler
	Formatter    *formatresponse.Handler
	Orchestrator *processquestion.Handler
}

func Build(cfg *config.Config, log logger.Logger, opts Options) (*Components, error) {
	reg, err := registry.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}

	store, err := prompts.Load(cfg.Prompts.Dir, &promptsLoggerAdapter{log})
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend = llm.NewOpenRouterClient(&llm.Config{
			APIKey:           cfg.OpenRouter.APIKey,
			BaseURL:          cfg.OpenRouter.BaseURL,
			Referer:          cfg.OpenRouter.Referer,
			Title:            cfg.OpenRouter.Title,
			Timeout:          config.GetDuration(cfg.OpenRouter.Timeout),
			MaxRetries:       cfg.OpenRouter.MaxRetries,
			BreakerThreshold: cfg.OpenRouter.BreakerThreshold,
			BreakerCooldown:  config.GetDuration(cfg.OpenRouter.BreakerCooldown),
		}, &llmLoggerAdapter{log})
	}

	c := &Components{
		Registry:   reg,
		Prompts:    store,
		Backend:    backend,
		Calculator: confidence.NewCalculator(presets(cfg.Auditor.Presets)),
	}

	if err := c.buildSearch(cfg, log, opts.SearchBackend); err != nil {
		return nil, err
	}

	prices := priceTable(cfg.Models)

	routeCfg := routequestion.LoadConfig()
	routeCfg.Model = cfg.Models.Router
	routeCfg.Timeout = workerTimeout(cfg, routequestion.TaskType, routeCfg.Timeout)
	routeCfg.Bias = cfg.Router.Bias
	c.Router = routequestion.NewHandler(routeCfg, backend, prices, store, reg, &routeLoggerAdapter{log})

	specialistCfg := answerspecialist.LoadConfig()
	specialistCfg.Model = cfg.Models.Specialist
	specialistCfg.Timeout = workerTimeout(cfg, answerspecialist.TaskType, specialistCfg.Timeout)
	c.Specialist = answerspecialist.NewHandler(specialistCfg, backend, prices, store, reg, c.Search, &specialistLoggerAdapter{log})

	auditCfg := auditresponse.LoadConfig()
	auditCfg.Model = cfg.Models.Auditor
	auditCfg.Timeout = workerTimeout(cfg, auditresponse.TaskType, auditCfg.Timeout)
	auditCfg.MultiEnabled = cfg.Auditor.MultiEnabled
	auditCfg.DefaultConfidence = cfg.Auditor.DefaultConfidence
	c.Auditor = auditresponse.NewHandler(auditCfg, backend, prices, store, c.Calculator, &auditLoggerAdapter{log})

	formatCfg := formatresponse.LoadConfig()
	formatCfg.NearPerfectThreshold = cfg.Auditor.NearPerfectThreshold
	formatCfg.Timeout = workerTimeout(cfg, formatresponse.TaskType, formatCfg.Timeout)
	c.Formatter = formatresponse.NewHandler(formatCfg, c.Calculator, &formatLoggerAdapter{log})

	processCfg := processquestion.LoadConfig()
	processCfg.Timeout = workerTimeout(cfg, processquestion.TaskType, processCfg.Timeout)
	processCfg.RouteTimeout = routeCfg.Timeout
	processCfg.SpecialistTimeout = specialistCfg.Timeout
	processCfg.AuditTimeout = auditCfg.Timeout
	c.Orchestrator = processquestion.NewHandler(processCfg, c.Router, c.Specialist, c.Auditor, c.Formatter, opts.Tracer, &processLoggerAdapter{log})
	if opts.Recorder != nil {
		c.Orchestrator.SetRecorder(opts.Recorder)
	}

	return c, nil
}

func (c *Components) buildSearch(cfg *config.Config, log logger.Logger, override search.Backend) error {
	cache, err := search.NewCache(search.CacheConfig{
		ExchangeRateTTL: time.Duration(cfg.Search.Cache.ExchangeRateTTLMinutes) * time.Minute,
		DefaultTTL:      time.Duration(cfg.Search.Cache.RegulationTTLMinutes) * time.Minute,
		MaxEntries:      cfg.Search.Cache.MaxEntries,
	})
	if err != nil {
		return fmt.Errorf("create search cache: %w", err)
	}

	backend := override
	if backend == nil && cfg.Search.Enabled {
		switch cfg.Search.Backend {
		case "elasticsearch":
			es, err := database.NewElasticsearch(cfg.Elasticsearch)
			if err != nil {
				return err
			}
			c.Elastic = es
			backend = search.NewElasticsearchBackend(es.Client, es.Index)
		default:
			backend = search.NewTavilyBackend(cfg.Search.APIKey, cfg.Search.BaseURL, config.GetDuration(cfg.Search.Timeout))
		}
	}

	c.Search = search.NewProvider(search.ProviderConfig{
		Enabled:   cfg.Search.Enabled,
		CostQuick: cfg.Search.CostQuick,
		CostFull:  cfg.Search.CostFull,
	}, backend, cache, search.ProfilesFromRegistry(c.Registry), &searchLoggerAdapter{log})
	return nil
}

func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return fallback
}

func priceTable(m config.ModelsConfig) *llm.PriceTable {
	if len(m.Pricing) == 0 {
		return llm.NewPriceTable(nil, m.DefaultPricing)
	}
	prices := make(map[string]llm.Price, len(m.Pricing))
	for _, p := range m.Pricing {
		prices[p.Model] = llm.Price{
			InputPerMillion:  p.InputPerMillion,
			OutputPerMillion: p.OutputPerMillion,
		}
	}
	return llm.NewPriceTable(prices, m.DefaultPricing)
}

func presets(cfgs []config.PresetConfig) []confidence.Preset {
	out := make([]confidence.Preset, 0, len(cfgs))
	for _, p := range cfgs {
		out = append(out, confidence.Preset{Score: p.Score, Points: p.Points})
	}
	return out
}
