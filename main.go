package main

import (
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/config"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/handlers"
	"github.com/roledash/roledash-engine/pkg/llm"
	"github.com/roledash/roledash-engine/pkg/logging"
	"github.com/roledash/roledash-engine/pkg/repositories"
	"github.com/roledash/roledash-engine/pkg/services"
	"github.com/roledash/roledash-engine/pkg/sources"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("data_dir", cfg.DataDir),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model))

	// Storage
	dbManager, err := database.NewManager(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize role database manager", zap.Error(err))
	}
	configRepo, err := repositories.NewRoleConfigRepository(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize role config repository", zap.Error(err))
	}
	planRepo, err := repositories.NewPlanRepository(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize plan repository", zap.Error(err))
	}
	insightRepo := repositories.NewChartInsightRepository()
	actionRepo := repositories.NewActionRepository()

	// LLM clients. Insight generation tolerates a cheaper model.
	planClient, err := llm.NewFromConfig(&cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	insightClient := planClient
	if cfg.LLM.InsightModel != "" && cfg.LLM.InsightModel != cfg.LLM.Model {
		insightCfg := cfg.LLM
		insightCfg.Model = cfg.LLM.InsightModel
		insightClient, err = llm.NewFromConfig(&insightCfg, logger)
		if err != nil {
			logger.Fatal("Failed to create insight LLM client", zap.Error(err))
		}
	}

	// Services
	sourceFactory := sources.NewSourceFactory(logger)
	roleService := services.NewRoleService(configRepo, dbManager, logger)
	importService := services.NewImportService(configRepo, dbManager, sourceFactory, cfg.Import, logger)
	insightService := services.NewInsightService(insightClient, insightRepo, cfg.LLM.Temperature, logger)
	generator := services.NewPlanGenerator(planClient, logger)
	validator := services.NewPlanValidator(insightService, logger)
	analysisService := services.NewAnalysisService(configRepo, planRepo, dbManager, generator, validator, insightService, planClient, logger)
	metricsService := services.NewMetricsService(planRepo, dbManager, logger)

	// HTTP API
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(handlers.NewSessionStore(cfg.SessionKey), logger).RegisterRoutes(mux)
	handlers.NewRoleHandler(roleService, importService, analysisService, planRepo, logger).RegisterRoutes(mux)
	handlers.NewMetricsHandler(metricsService, analysisService, insightService, roleService, planRepo, dbManager, logger).RegisterRoutes(mux)
	handlers.NewActionHandler(actionRepo, dbManager, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting roledash-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
