package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftchat/internal/config"
	"github.com/driftchat/internal/handler"
	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/middleware"
	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/push"
	"github.com/driftchat/internal/repository"
	"github.com/driftchat/internal/repository/memory"
	"github.com/driftchat/internal/service"
	"github.com/driftchat/internal/startup"
	"github.com/driftchat/internal/storage"
	storagememory "github.com/driftchat/internal/storage/memory"
	"github.com/driftchat/internal/ws"
	"github.com/driftchat/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	mem := flag.Bool("mem", false, "run fully in-memory (no PostgreSQL, no Redis)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var (
		msgStore     repository.MessageStore
		groupStore   repository.GroupStore
		notifStore   repository.NotificationStore
		userStore    repository.UserStore
		subStore     repository.SubscriptionStore
		sessionStore storage.SessionStore
	)

	if *mem {
		db := memory.New()
		msgStore = db.Messages()
		groupStore = db.Groups()
		notifStore = db.Notifications()
		userStore = db.Users()
		subStore = db.Subscriptions()
		memSessions := storagememory.New()
		sessionStore = memSessions
		seedDev(db, memSessions)
		logger.Info("running in-memory (data is lost on exit)")
	} else {
		var embeddedDB *embeddedpostgres.EmbeddedPostgres
		if *dev {
			var err error
			embeddedDB, err = startEmbeddedPostgres(cfg)
			if err != nil {
				logger.Errorf("embedded postgres: %v", err)
				os.Exit(1)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}

		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
		if err != nil {
			logger.Errorf("parse db config: %v", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConnections())
		poolCfg.MinConns = 4

		pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
		defer pool.Close()

		runMigrations(pool)
		if *migrate && !*dev {
			return
		}

		// Presence is derived from live connections; stale flags from a
		// previous run must not survive a restart.
		resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := pool.Exec(resetCtx, "UPDATE users SET is_online = false"); err != nil {
			logger.Errorf("reset online status: %v", err)
		}
		resetCancel()
		logger.Info("database connected, migrations applied")

		msgStore = repository.NewMessageRepository(pool)
		groupStore = repository.NewGroupRepository(pool)
		notifStore = repository.NewNotificationRepository(pool)
		userStore = repository.NewUserRepository(pool)
		subStore = repository.NewSubscriptionRepository(pool)

		if *dev {
			sessionStore = storagememory.New()
			logger.Info("dev mode: in-memory session store")
		} else {
			redisClient := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
			sessionStore = redisClient
			logger.Info("redis connected")
		}
	}
	defer sessionStore.Close()

	vapidKeys, err := push.EnsureVAPIDKeys(cfg.VAPIDKeysFile)
	if err != nil {
		logger.Errorf("VAPID keys unavailable: %v (browser push disabled)", err)
	}
	sender := push.NewSender(subStore, vapidKeys)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(userStore, sender, cfg.MaxWSConnections)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	sendSvc := service.NewSendService(msgStore, groupStore, notifStore, userStore, hub)

	msgH := handler.NewMessageHandler(msgStore, groupStore, sendSvc)
	groupH := handler.NewGroupHandler(groupStore, msgStore, userStore)
	notifH := handler.NewNotificationHandler(notifStore)
	userH := handler.NewUserHandler(userStore)
	pushH := handler.NewPushHandler(sender)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Never compress WebSocket responses: the wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/push/vapid-public", pushH.VAPIDPublic)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(sessionStore))
		r.Get("/api/messages/users", msgH.GetSidebarUsers)
		r.Get("/api/messages/hidden", msgH.GetHiddenChats)
		r.Get("/api/messages/group/{id}", msgH.GetGroupMessages)
		r.Post("/api/messages/group/{id}/send", msgH.SendGroupMessage)
		r.Post("/api/messages/send/{id}", msgH.SendMessage)
		r.Put("/api/messages/{id}/read", msgH.MarkAsRead)
		r.Delete("/api/messages/message/{id}", msgH.DeleteMessage)
		r.Delete("/api/messages/chat/{id}", msgH.DeleteChat)
		r.Post("/api/messages/hide/{id}", msgH.HideChat)
		r.Post("/api/messages/unhide/{id}", msgH.UnhideChat)
		r.Get("/api/messages/{id}", msgH.GetMessages)
		r.Get("/api/groups", groupH.List)
		r.Post("/api/groups", groupH.Create)
		r.Delete("/api/groups/{id}", groupH.Delete)
		r.Get("/api/notifications", notifH.List)
		r.Put("/api/notifications/{id}/read", notifH.MarkRead)
		r.Get("/api/users/search", userH.Search)
		r.Get("/api/users/{id}", userH.GetProfile)
		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "driftchat"
		password = "driftchat_secret"
		database = "driftchat"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}

// seedDev fills the in-memory mode with a few users and ready-made
// sessions so the API is usable straight away.
func seedDev(db *memory.DB, sessions *storagememory.Client) {
	ctx := context.Background()
	users := db.Users()
	for _, name := range []string{"alice", "bob", "carol"} {
		u := &model.User{
			ID:        uuid.NewString(),
			Username:  name,
			FullName:  strings.ToUpper(name[:1]) + name[1:],
			CreatedAt: time.Now().UTC(),
		}
		if err := users.Create(ctx, u); err != nil {
			logger.Errorf("seed user %s: %v", name, err)
			continue
		}
		sessionID := "dev-" + name
		if err := sessions.Put(ctx, sessionID, u.ID); err != nil {
			logger.Errorf("seed session %s: %v", sessionID, err)
			continue
		}
		logger.Infof("seeded user %s id=%s session=%s", name, u.ID, sessionID)
	}
}
