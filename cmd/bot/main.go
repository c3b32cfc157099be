package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskbot/internal/admin"
	"deskbot/internal/booking"
	"deskbot/internal/bot"
	"deskbot/internal/config"
	"deskbot/internal/database"
	"deskbot/internal/events"
	"deskbot/internal/google"
	"deskbot/internal/health"
	"deskbot/internal/metrics"
	"deskbot/internal/repository"
	"deskbot/internal/service"
	"deskbot/shared/access"
	"deskbot/shared/audit"
	"deskbot/shared/reminders"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("DESKBOT_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Telegram.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	err = config.WatchOffice(ctx, cfg.OfficeConfigPath, 30*time.Second, func(office *config.OfficeConfig) {
		if err := db.SyncOfficeFromConfig(ctx, office); err != nil {
			logger.Error().Err(err).Msg("office sync failed")
			return
		}
		logger.Info().Int("rooms", len(office.Rooms)).Msg("Office layout synced")
	})
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.OfficeConfigPath).Msg("load office config error")
	}

	checker := health.NewChecker()
	checker.Add("database", db.Ping)

	memory := repository.NewMemoryStateRepository(cfg.StateTTL())
	var stateRepo repository.StateRepository = memory
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		primary := repository.NewRedisStateRepository(rdb, cfg.StateTTL())
		stateRepo = repository.NewFailoverStateRepository(primary, memory, &logger)
		checker.Add("redis", primary.Ping)
	} else {
		logger.Warn().Msg("redis is not configured, dialog state is kept in memory")
	}
	go sweepStates(ctx, memory, cfg.StateTTL())
	stateSvc := service.NewStateService(stateRepo, logger)

	bus := events.NewEventBus(&logger)
	resolver := booking.NewResolver(db, booking.Options{
		DateFormat: cfg.Booking.DateFormat,
		Location:   cfg.Location(),
		Logger:     &logger,
	})
	writer := booking.NewWriter(db, resolver, bus, cfg.Booking.MaxAdvanceDays, &logger)
	adminSvc := admin.NewService(db, logger)
	accessSvc := access.NewService(db, cfg.Admins, logger)
	exporter := audit.NewService(audit.Config{BotName: "deskbot"}, db, nil, nil, logger)

	b, err := bot.New(cfg.Telegram.BotToken, bot.Deps{
		Resolver: resolver,
		Writer:   writer,
		Admin:    adminSvc,
		Access:   accessSvc,
		State:    stateSvc,
		Exporter: exporter,
	}, bot.Options{
		Mode:              booking.ModeFromConfig(cfg.Booking),
		DateDays:          cfg.Booking.MaxAdvanceDays,
		MessagesPerMinute: cfg.RateLimit.MessagesPerMinute,
		Debug:             cfg.Telegram.Debug,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}
	notifier := b.Notifier(accessSvc.AdminIDs())

	if cfg.Reminders.Enabled {
		reminderMetrics := reminders.NewMetrics("deskbot", prometheus.DefaultRegisterer)
		sender := reminders.NewSender(notifier, reminders.NewRateLimiter(reminders.DefaultRateLimiterConfig()),
			reminders.DefaultRetryConfig(), reminderMetrics, logger)
		scheduler := reminders.NewScheduler(reminders.SchedulerConfig{
			Location:  cfg.Location(),
			DailyHour: cfg.Reminders.Hour,
		}, adminSvc, sender, reminderMetrics, logger)
		go scheduler.Start(ctx)
	}

	monthly := audit.NewService(audit.Config{Monthly: true, BotName: "deskbot"}, db, nil, notifier, logger)
	go monthly.Start(ctx)

	if cfg.Google.SheetsEnabled {
		sheetsSvc, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName, logger)
		if err != nil {
			logger.Error().Err(err).Msg("google sheets disabled")
		} else {
			sheetsSvc.SetLocation(cfg.Location())
			sheetsSvc.Subscribe(bus)
			go sheetsSvc.Run(ctx, adminSvc, time.Hour)
		}
	}

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		gatherer = prometheus.DefaultGatherer
	}
	go health.ServeHTTP(ctx, cfg.Monitoring.HealthCheckPort, health.NewRouter(checker, gatherer), &logger)

	if cfg.Monitoring.GRPCHealthPort > 0 {
		go startGRPCHealth(ctx, cfg.Monitoring.GRPCHealthPort, checker, logger)
	}

	logger.Info().Bool("advanced_mode", cfg.Booking.AdvancedMode).Msg("Desk bot started")
	b.Start(ctx)
}

func startGRPCHealth(ctx context.Context, port int, checker *health.Checker, logger zerolog.Logger) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error().Err(err).Int("port", port).Msg("grpc health listen error")
		return
	}
	logger.Info().Int("port", port).Msg("gRPC health listening")
	if err := health.NewGRPCServer(checker, logger).Serve(ctx, lis, 10*time.Second); err != nil {
		logger.Error().Err(err).Msg("grpc health server error")
	}
}

// sweepStates drops expired in-memory dialog states.
func sweepStates(ctx context.Context, repo *repository.MemoryStateRepository, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			repo.Sweep()
		}
	}
}
