package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"face-match/api/internal/app"
	"face-match/api/internal/config"
	"face-match/api/internal/handle"
	"face-match/api/internal/logger"
	"face-match/api/internal/telegram"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		log.Error(ctx, "missing required env TELEGRAM_BOT_TOKEN")
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		log.Error(ctx, "startup failed", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error(ctx, "telegram login failed", logger.Error(err))
		os.Exit(1)
	}
	bot.Debug = false

	r := telegram.NewRouter(bot, a.Analyzer)
	r.Messages = a.Messages
	r.Log = log.Named("router")
	r.Timeout = cfg.RequestTimeout()
	r.MaxImageBytes = cfg.MaxImageBytes

	// health, metrics and the JSON API are served in both modes
	h := handle.New(a.Analyzer,
		handle.WithLogger(log.Named("http")),
		handle.WithMessages(a.Messages),
		handle.WithMaxImageBytes(cfg.MaxImageBytes),
		handle.WithTimeout(cfg.RequestTimeout()),
		handle.WithHealthCheck(a.Ping),
	)
	mux := chi.NewRouter()
	mux.Mount("/", h.Routes(cfg.CORSOrigins))

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		if err := setWebhook(bot, mux, r, webhookURL, log); err != nil {
			log.Error(ctx, "webhook setup failed", logger.Error(err))
			os.Exit(1)
		}
	} else {
		go runPolling(ctx, bot, r.HandleUpdate, log)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 10*time.Second,
	}
	go func() {
		log.Info(ctx, "health server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info(ctx, "bot stopped")
}

// ---------------- Webhook -----------------

func setWebhook(bot *tgbotapi.BotAPI, mux chi.Router, r *telegram.Router, baseURL string, log logger.Logger) error {
	// secret path derived from the token
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	mux.Post(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.HandleUpdate(*upd)
		w.WriteHeader(http.StatusOK)
	})
	log.Info(context.Background(), "webhook registered", logger.String("path", path))
	return nil
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update), log logger.Logger) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling, seconds

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Warn(ctx, "polling error", logger.Error(err), logger.Duration("retry_in", d))
			time.Sleep(d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

func shortHash(s string) string {
	// FNV-1a, stable per token
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
