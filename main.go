package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"unibook-bot/checker"
	"unibook-bot/config"
	"unibook-bot/fetcher"
	"unibook-bot/handlers"
	"unibook-bot/migrations"
	"unibook-bot/notifier"
	"unibook-bot/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	// The booking site lives in Italy; slot timestamps only make sense
	// there.
	if loc, err := time.LoadLocation("Europe/Rome"); err != nil {
		logger.Warn("failed to load Rome timezone, using UTC", zap.Error(err))
	} else {
		time.Local = loc
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal("telegram auth failed", zap.Error(err))
	}
	logger.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer store.Close()

	if err := migrations.Up(ctx, store.Pool()); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	// The catalog cache is optional: a dead Redis only means every
	// /attiva_prenotazioni reads the catalog from Postgres.
	var cache handlers.Cache
	if redisCache := storage.NewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); redisCache.Ping(ctx) == nil {
		cache = redisCache
	} else {
		logger.Warn("redis unavailable, course cache disabled", zap.String("addr", cfg.RedisAddr))
	}

	broadcaster := notifier.NewTelegram(bot, cfg.AllowedChatIDs, logger)
	pageClient := fetcher.New(cfg.PageURL, cfg.UserID, logger)
	scanner := checker.New(pageClient, store, broadcaster, cfg.ScanInterval, logger)
	handler := handlers.New(bot, scanner, store, cache, broadcaster, cfg.CourseIDs, cfg.AllowedChatIDs, logger)

	go func() {
		<-ctx.Done()
		scanner.Stop()
		bot.StopReceivingUpdates()
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	logger.Info("bot is running", zap.Duration("scan_interval", cfg.ScanInterval))

	for update := range updates {
		if update.Message == nil {
			continue
		}
		handleMessage(handler, update.Message)
	}
}

func handleMessage(h *handlers.Handler, msg *tgbotapi.Message) {
	if !h.IsAllowed(msg.Chat.ID) {
		h.ReplyUnauthorized(msg)
		return
	}

	switch msg.Command() {
	case "start":
		h.HandleStart(msg)

	case "attiva_prenotazioni":
		h.HandleEnable(msg)

	case "ferma_prenotazioni":
		h.HandleDisable(msg)

	case "stato":
		h.HandleStatus(msg)

	case "lista_prenotazioni":
		h.HandleBookings(msg)

	default:
		h.HandleUnknown(msg)
	}
}
