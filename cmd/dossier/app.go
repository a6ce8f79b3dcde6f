package main

import (
	"fmt"

	"go.uber.org/zap"

	"dossier/internal/ambient"
	"dossier/internal/briefing"
	"dossier/internal/collab"
	"dossier/internal/config"
	"dossier/internal/discovery"
	"dossier/internal/embedding"
	"dossier/internal/fetcher"
	"dossier/internal/gatherer"
	"dossier/internal/llm"
	"dossier/internal/memory"
	"dossier/internal/profile"
	"dossier/internal/signals"
	"dossier/internal/supervisor"
	"dossier/internal/types"
)

// app holds the fully wired component graph for one process.
type app struct {
	cfg        config.SupervisorConfig
	memory     *memory.Store
	profiles   *profile.Store
	registry   *gatherer.Registry
	supervisor *supervisor.Supervisor
	discoverer *discovery.Discoverer
	ambient    *ambient.Orchestrator
	notebooks  types.NotebookStore
	sources    types.SourceStore
}

// buildApp wires the whole system from configuration. Components are
// constructed bottom-up: engines, memory, fetch, agents.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.Endpoint,
		OllamaModel:    cfg.Embedding.Model,
		GenAIAPIKey:    cfg.Embedding.APIKey,
		GenAIModel:     cfg.Embedding.Model,
	})
	if err != nil {
		logger.Warn("embedding engine unavailable, semantic features degraded", zap.Error(err))
		engine = nil
	}

	var llmClient types.LLMClient
	switch cfg.LLM.Provider {
	case "genai":
		llmClient, err = llm.NewGenAIClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature)
		if err != nil {
			return nil, fmt.Errorf("genai client: %w", err)
		}
	default:
		llmClient = llm.NewOllamaClient(cfg.LLM.Endpoint, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.Timeout)
	}

	mem, err := memory.Open(dataDir, engine)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	mem.Summarizer = llmClient

	profiles := profile.NewStore(dataDir)
	notebooks := collab.NewDirNotebookStore(dataDir)
	sources := collab.NewFileSourceStore(dataDir)
	notifier := collab.LogNotifier{}
	scraper := collab.NewHTTPScraper(cfg.UserAgent)

	var searcher types.WebSearcher
	if cfg.SearchURL != "" {
		searcher = collab.NewSearxSearcher(cfg.SearchURL, cfg.UserAgent)
	}

	fetch := fetcher.New(cfg.UserAgent, cfg.EdgarUserAgent, fetcher.WithSearcher(searcher))
	learner := signals.NewLearner(mem.Recall)

	registry := gatherer.NewRegistry(gatherer.Deps{
		Profiles: profiles,
		Memory:   mem,
		Fetcher:  fetch,
		LLM:      llmClient,
		Learner:  learner,
		Sources:  sources,
		RAG:      collab.NoopIngestor{},
		Notifier: notifier,
		Scraper:  scraper,
	})

	briefGen := briefing.NewGenerator(briefing.Deps{
		Profiles:  profiles,
		Memory:    mem,
		Registry:  registry,
		Sources:   sources,
		Notebooks: notebooks,
		LLM:       llmClient,
	})

	sup := supervisor.New(supervisor.Deps{
		Config:    cfg,
		DataDir:   dataDir,
		Profiles:  profiles,
		Memory:    mem,
		Registry:  registry,
		LLM:       llmClient,
		Learner:   learner,
		Notebooks: notebooks,
		Briefing:  briefGen,
	})

	return &app{
		cfg:        cfg,
		memory:     mem,
		profiles:   profiles,
		registry:   registry,
		supervisor: sup,
		discoverer: discovery.New(llmClient, searcher),
		ambient:    ambient.New(dataDir, sup, registry, profiles, mem, notebooks, notifier),
		notebooks:  notebooks,
		sources:    sources,
	}, nil
}

func (a *app) close() {
	if err := a.memory.Close(); err != nil {
		logger.Warn("closing memory store", zap.Error(err))
	}
}
