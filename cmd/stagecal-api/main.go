package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hikawa-dev/stagecal/backend/internal/approval"
	"github.com/hikawa-dev/stagecal/backend/internal/config"
	"github.com/hikawa-dev/stagecal/backend/internal/database"
	"github.com/hikawa-dev/stagecal/backend/internal/logging"
	"github.com/hikawa-dev/stagecal/backend/internal/reconcile"
	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"github.com/hikawa-dev/stagecal/backend/internal/server"
	"github.com/hikawa-dev/stagecal/backend/internal/trigger"
	"github.com/hikawa-dev/stagecal/backend/internal/videosource"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stagecal-api",
		Short: "Stagecal schedule reconciliation backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("timezone", defaults.GetString("timezone.name"), "Target time zone for calendar dates")
	cmd.PersistentFlags().String("videos-base-url", "", "Video aggregation API base URL")
	cmd.PersistentFlags().Int("videos-cache-ttl-minutes", defaults.GetInt("videos.cache_ttl_minutes"), "Video listing cache TTL in minutes")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "timezone.name", "timezone")
	bindFlag(cmd, "videos.base_url", "videos-base-url")
	bindFlag(cmd, "videos.cache_ttl_minutes", "videos-cache-ttl-minutes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	location, err := time.LoadLocation(appConfig.TimezoneName)
	if err != nil {
		return err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	creatorStore := schedule.NewCreatorStore(db)
	entryStore := schedule.NewEntryStore(db)
	stagingStore := schedule.NewStagingStore(db)
	activityStore := schedule.NewActivityStore(db)
	settingsStore := schedule.NewSettingsStore(db)

	videoClient, err := videosource.NewClient(videosource.ClientConfig{
		BaseURL: appConfig.VideoBaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	videoCache := videosource.NewMemoryCache(appConfig.VideoCacheTTL, nil)
	videos := videosource.NewCachedSource(videoClient, videoCache)

	idProvider := schedule.NewUUIDProvider()

	engine, err := reconcile.NewEngine(reconcile.EngineConfig{
		Creators:   creatorStore,
		Entries:    entryStore,
		Staging:    stagingStore,
		Activity:   activityStore,
		Videos:     videos,
		IDProvider: idProvider,
		Logger:     logger,
		Location:   location,
	})
	if err != nil {
		return err
	}

	processor, err := approval.NewProcessor(approval.ProcessorConfig{
		Entries:    entryStore,
		Staging:    stagingStore,
		Activity:   activityStore,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ticker, err := trigger.NewTicker(trigger.TickerConfig{
		Engine:   engine,
		Settings: settingsStore,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Engine:    engine,
		Approvals: processor,
		Staging:   stagingStore,
		Settings:  settingsStore,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go ticker.Run(signalCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
