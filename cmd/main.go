package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/fund_tracker_bot/config"
	"github.com/KotFed0t/fund_tracker_bot/data"
	"github.com/KotFed0t/fund_tracker_bot/data/repository/postgres"
	"github.com/KotFed0t/fund_tracker_bot/data/session"
	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi/fundApi"
	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi/holdingsApi"
	"github.com/KotFed0t/fund_tracker_bot/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/fund_tracker_bot/internal/scheduler"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/fundTrackerService"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/holdingsStore"
	"github.com/KotFed0t/fund_tracker_bot/internal/tgbot"
	"github.com/KotFed0t/fund_tracker_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := data.NewRedisClient(ctx, cfg)
	defer redisClient.Close()

	redisSession := session.NewRedisSession(redisClient, cfg)

	deps := fundTrackerService.Deps{
		FundApi:   fundApi.New(cfg),
		Generator: xslsxGenerator.New(),
	}

	switch cfg.Backend {
	case config.BackendPostgres:
		pgClient := data.NewPostgresClient(ctx, cfg)
		defer pgClient.Close()

		pgRepo := postgres.NewPostgres(cfg, pgClient)
		deps.Registrar = pgRepo
		deps.Authorities = func(chatID int64, _ string) holdingsStore.Authority {
			return pgRepo.ForChat(chatID)
		}
	default:
		holdingsApiClient := holdingsApi.New(cfg)
		deps.Login = holdingsApiClient
		deps.Authorities = func(_ int64, token string) holdingsStore.Authority {
			return holdingsApiClient.ForToken(token)
		}
	}

	if cfg.GoogleDrive.Enabled {
		deps.Storage = googleDriveApi.New(ctx, cfg)
	}

	fundTrackerSrv, err := fundTrackerService.New(cfg, deps)
	if err != nil {
		slog.Error("error while fundTrackerService.New", slog.String("err", err.Error()))
		panic(err)
	}

	sched := scheduler.New()
	sched.NewIntervalJob("evict idle workspaces", fundTrackerSrv.EvictIdleWorkspaces, cfg.Jobs.EvictWorkspacesInterval, false)
	if cfg.GoogleDrive.Enabled {
		sched.NewIntervalJob("delete old reports", fundTrackerSrv.DeleteOldReports, cfg.Jobs.DeleteOldReportsInterval, true)
	}
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(fundTrackerSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
