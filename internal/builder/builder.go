package builder

import (
	"fmt"
	"net/http"
	"time"

	"github.com/futig/docchat/internal/api"
	chatapi "github.com/futig/docchat/internal/api/chat"
	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/integration/rag"
	"github.com/futig/docchat/internal/pkg/formatter"
	"github.com/futig/docchat/internal/pkg/validator"
	"github.com/futig/docchat/internal/repository"
	"github.com/futig/docchat/internal/telegram"
	"github.com/futig/docchat/internal/usecase/chat"
	"go.uber.org/zap"
)

func Build() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	chatUC := buildChatUsecase(cfg, logger)

	// Setup API handlers
	chatHandler := chatapi.NewHandler(chatUC, cfg.FileUploadCfg)
	logger.Info("API handlers initialized")

	router := api.SetupRouter(chatHandler, cfg, logger)
	logger.Info("HTTP router configured")

	// No WriteTimeout: a query waits for the answer unless RAG_QUERY_TIMEOUT
	// or SERVER_REQUEST_TIMEOUT bound it.
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		logger: logger,
	}, nil
}

// BuildTelegramBot creates and initializes the Telegram bot
func BuildTelegramBot() (telegram.Bot, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building Telegram bot",
		zap.String("environment", cfg.Environment),
	)

	chatUC := buildChatUsecase(cfg, logger)

	bot, err := telegram.NewBot(&cfg.TelegramCfg, cfg.FileUploadCfg, chatUC, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	logger.Info("Telegram bot built successfully",
		zap.String("environment", cfg.Environment),
	)

	return bot, logger, nil
}

// buildChatUsecase wires the RAG backend, the session store and the chat
// workflows. A backend that cannot be built leaves the usecase in degraded
// mode instead of failing startup.
func buildChatUsecase(cfg *config.Config, logger *zap.Logger) *chat.ChatUsecase {
	var (
		backend    chat.RagBackend
		backendErr error
	)

	if cfg.EnableMocks {
		logger.Info("Using mock connector for the RAG service")
		backend = rag.NewMockConnector(logger)
	} else {
		connector, err := rag.NewConnector(cfg.RAGConnectorCfg, logger)
		if err != nil {
			logger.Error("RAG client unavailable, running degraded", zap.Error(err))
			backendErr = err
		} else {
			logger.Info("Using RAG service", zap.String("url", cfg.RAGConnectorCfg.Url))
			backend = connector
		}
	}

	sessions := repository.NewSessionCache(cfg.SessionCfg, logger)
	fileValidator := validator.NewFileValidator(cfg.FileUploadCfg)
	formatters := formatter.NewFactory()

	chatUC := chat.NewUsecase(
		backend,
		backendErr,
		sessions,
		fileValidator,
		formatters,
		cfg.RAGConnectorCfg,
		cfg.SessionCfg,
		logger,
	)
	sessions.OnEvicted(chatUC.ReleaseSession)
	logger.Info("Use cases initialized")

	return chatUC
}
