package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docvault/internal/ai"
	"github.com/xxxsen/docvault/internal/config"
	"github.com/xxxsen/docvault/internal/db"
	"github.com/xxxsen/docvault/internal/filestore"
	"github.com/xxxsen/docvault/internal/handler"
	"github.com/xxxsen/docvault/internal/job"
	"github.com/xxxsen/docvault/internal/middleware"
	"github.com/xxxsen/docvault/internal/repo"
	"github.com/xxxsen/docvault/internal/schedule"
	"github.com/xxxsen/docvault/internal/service"
)

const rateLimitWindow = 10 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docvault",
		Short: "docvault backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docvault server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
	)

	docRepo := repo.NewDocumentRepo(conn)
	groupRepo := repo.NewGroupRepo(conn)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	gen, err := buildGenerator(cfg.AI)
	if err != nil {
		return err
	}
	summarizer := ai.NewSummarizer(gen, ai.SummarizerConfig{
		Model:         cfg.AI.Model,
		MaxInputChars: cfg.AI.MaxInputChars,
		TimeoutSecs:   cfg.AI.TimeoutSecs,
	})
	suggester := ai.NewSuggester(gen, ai.SuggesterConfig{TimeoutSecs: cfg.AI.TimeoutSecs})

	processService := service.NewProcessService(docRepo, store, summarizer)
	urlTTL := time.Duration(cfg.Process.URLTTLMins) * time.Minute
	documentService := service.NewDocumentService(docRepo, groupRepo, store, processService, summarizer, urlTTL)
	groupService := service.NewGroupService(groupRepo, docRepo, suggester)

	deps := handler.RouterDeps{
		Documents:  handler.NewDocumentHandler(documentService, cfg.MaxUploadMB*1024*1024),
		Groups:     handler.NewGroupHandler(groupService),
		JWTSecret:  []byte(cfg.JWTSecret),
		RateWindow: rateLimitWindow,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	pendingDelay := time.Duration(cfg.Process.PendingDelayMins) * time.Minute
	if err := scheduler.AddJob(job.NewPendingDocumentsJob(docRepo, processService, pendingDelay), cfg.Process.PendingScanCron); err != nil {
		return fmt.Errorf("schedule pending job: %w", err)
	}
	stuckCutoff := time.Duration(cfg.Process.StuckCutoffMins) * time.Minute
	if err := scheduler.AddJob(job.NewStuckProcessingJob(docRepo, stuckCutoff), cfg.Process.StuckScanCron); err != nil {
		return fmt.Errorf("schedule stuck job: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	providers := append([]config.AIProviderConfig{cfg.AIProviderConfig}, cfg.Fallbacks...)
	entries := make([]ai.GeneratorEntry, 0, len(providers))
	for _, pc := range providers {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      pc.Provider + "/" + pc.Model,
			Generator: ai.NewGenerator(provider, pc.Model),
		})
	}
	return ai.NewFallbackGenerator(entries), nil
}
