package main

import (
	"context"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/kgellert/trimer-client/internal/cache"
	cachehandler "github.com/kgellert/trimer-client/internal/cache/handler"
	"github.com/kgellert/trimer-client/internal/capture"
	"github.com/kgellert/trimer-client/internal/chats"
	chatshandler "github.com/kgellert/trimer-client/internal/chats/handler"
	chatsrepo "github.com/kgellert/trimer-client/internal/chats/repo"
	appConfig "github.com/kgellert/trimer-client/internal/config"
	configHandler "github.com/kgellert/trimer-client/internal/config/handler"
	mwLogger "github.com/kgellert/trimer-client/internal/http-server/middleware/logger"
	"github.com/kgellert/trimer-client/internal/lib/logger/handlers/slogpretty"
	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	messagesHandler "github.com/kgellert/trimer-client/internal/messages/handler"
	messagesrepo "github.com/kgellert/trimer-client/internal/messages/repo"
	messagesservice "github.com/kgellert/trimer-client/internal/messages/service"
	"github.com/kgellert/trimer-client/internal/metrics"
	"github.com/kgellert/trimer-client/internal/storage/stores"
	"github.com/kgellert/trimer-client/internal/uploads/media"
	"github.com/kgellert/trimer-client/internal/web"
	ws "github.com/kgellert/trimer-client/internal/ws/handler"
	"github.com/kgellert/trimer-client/internal/ws/hub"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appConfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting trimer-client",
		slog.String("env", cfg.Env),
		slog.String("user", cfg.Session.CurrentUser),
		slog.String("server", cfg.Server.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newServerClient(cfg)
	if err != nil {
		log.Error("failed to init chat server client", sl.Err(err))
		os.Exit(1)
	}

	store, err := stores.Open(ctx, cfg.Cache, cfg.S3)
	if err != nil {
		log.Error("failed to init cache store", slog.String("store", cfg.Cache.Store), sl.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	assets, err := cache.New(log, store, client, cfg.Server.BaseURL, cfg.Cache.Name, cfg.Cache.Precache)
	if err != nil {
		log.Error("failed to init cache", sl.Err(err))
		os.Exit(1)
	}
	// A failed install keeps the previous version around; assets are then
	// fetched on demand.
	if err := assets.Install(ctx); err != nil {
		log.Warn("failed to install cache", sl.Err(err))
	} else if err := assets.Activate(ctx); err != nil {
		log.Warn("failed to activate cache", sl.Err(err))
	}

	h := hub.NewHub(log)
	go h.Run()
	defer h.Stop()

	sidebar := chats.NewSidebar(h)
	chatPoller := chats.NewPoller(
		log,
		chatsrepo.New(client, cfg.Server),
		sidebar,
		cfg.Session.CurrentUser,
		cfg.Polling.ChatListInterval,
	)
	go chatPoller.Run(ctx)

	registry := messagesservice.NewRegistry(
		ctx,
		log,
		messagesrepo.New(client, cfg.Server, cfg.Session.CSRFToken),
		h,
		media.NewFFProbe(cfg.Capture.FFprobePath),
		capture.NewFFmpegMicrophone(cfg.Capture.FFmpegPath, cfg.Capture.InputFormat, cfg.Capture.InputDevice),
		sidebar,
		messagesservice.Options{
			CurrentUser:  cfg.Session.CurrentUser,
			ServerURL:    cfg.Server.BaseURL,
			PollInterval: cfg.Polling.ChatInterval,
			SuccessFor:   cfg.Dispatch.SuccessIndicator,
			Waveform:     media.NewFFmpegWaveform(cfg.Capture.FFmpegPath),
		},
	)
	defer registry.Close()

	if cfg.Session.OtherUser != "" {
		if _, err := registry.Window(cfg.Session.OtherUser); err != nil {
			log.Error("failed to open conversation", slog.String("username", cfg.Session.OtherUser), sl.Err(err))
		}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)

	pages := web.New(registry, cfg.Session.CurrentUser, log)
	mh := messagesHandler.New(registry, log)
	ch := chatshandler.New(sidebar, log)

	router.Get("/", pages.Index())
	router.Handle("/static/*", web.Static())
	router.Handle("/assets/*", cachehandler.New(assets, log).Asset())
	router.Get("/config", configHandler.New(*cfg, log).GetConfig())
	router.Handle("/metrics", metrics.Handler())
	router.Get("/ws", ws.WSHandler(h, registry, log))

	router.Route("/chat/{username}", func(r chi.Router) {
		r.Get("/", pages.Chat())
		r.Get("/view", mh.GetView())
		r.Post("/messages", mh.SendMessage())
		r.Post("/attachment", mh.SelectAttachment())
		r.Delete("/attachment", mh.RemoveAttachment())
		r.Post("/reply/{messageId}", mh.BeginReply())
		r.Delete("/reply", mh.DismissReply())
		r.Post("/record", mh.ToggleRecord())
		r.Post("/refresh", mh.Refresh())
	})

	router.Route("/chat-list", func(r chi.Router) {
		r.Get("/", ch.GetChatList())
		r.Get("/search", ch.Search())
		r.Post("/{username}/seen", ch.MarkSeen())
	})

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", sl.Err(err))
	}

	log.Info("server stopped")
}

// newServerClient returns the client for the chat server, carrying the
// session and csrf cookies the page would send.
func newServerClient(cfg *appConfig.Config) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.Server.BaseURL)
	if err != nil {
		return nil, err
	}

	var cookies []*http.Cookie
	if cfg.Session.SessionCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: "sessionid", Value: cfg.Session.SessionCookie, Path: "/"})
	}
	if cfg.Session.CSRFToken != "" {
		cookies = append(cookies, &http.Cookie{Name: "csrftoken", Value: cfg.Session.CSRFToken, Path: "/"})
	}
	jar.SetCookies(base, cookies)

	return &http.Client{Jar: jar, Timeout: cfg.Server.Timeout}, nil
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
