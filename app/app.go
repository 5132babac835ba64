package parley

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/putto11262002/parley/core"
	"github.com/putto11262002/parley/pkg/logger"
	"github.com/putto11262002/parley/pkg/router"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config  *Config
	db      *core.SQLiteDB
	redis   *redis.Client
	context context.Context
	server  *http.Server
	logger  *slog.Logger
	router  *router.Router
	events  *core.EventRouter
	conns   *core.ConnManager
	limiter *ClientRateLimiter

	userStore    core.UserStore
	chatStore    core.ChatStore
	messageStore core.MessageStore
	authStore    core.AuthStore

	registry   *core.ConnRegistry
	rooms      *core.RoomRouter
	locks      *core.KeyedMutex
	membership *core.MembershipResolver
	presence   *core.PresenceTracker
	pipeline   *core.Pipeline
	receipts   *core.ReceiptTracker
	reactions  *core.Reactions
	typing     *core.TypingCoordinator
	calls      *core.CallRelay
	chats      *core.Chats

	userHandler    *UserHandler
	chatHandler    *ChatHandler
	messageHandler *MessageHandler
	authHandler    *AuthHandler

	// cleanupFuncs run in registration order on shutdown.
	cleanupFuncs []func(context.Context) error
}

// New wires the application. A nil ctx is cancelled on SIGINT, SIGTERM, SIGQUIT
// and SIGHUP, and a nil config is loaded with LoadConfig.
func New(ctx context.Context, config *Config) (*App, error) {
	var err error
	app := &App{}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		config, err = LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, errors.New(FormatValidationErrors(err))
	}
	app.config = config

	app.logger = logger.New(os.Stdout, config.LogLevel, config.Mode == ProdMode)

	if err := app.openStorage(); err != nil {
		app.Shutdown(context.Background())
		return nil, err
	}

	app.registry = core.NewConnRegistry()
	app.rooms = core.NewRoomRouter(app.registry)
	app.locks = core.NewKeyedMutex()

	var cache core.MembershipCache
	if app.redis != nil {
		cache = core.NewRedisMembershipCache(app.redis, config.Redis.TTL)
	}
	app.membership = core.NewMembershipResolver(app.chatStore, cache, app.logger)
	app.presence = core.NewPresenceTracker(app.userStore, app.registry, app.membership, app.locks, app.logger)
	app.pipeline = core.NewPipeline(app.chatStore, app.messageStore, app.membership, app.rooms, app.registry, app.locks, app.logger)
	app.receipts = core.NewReceiptTracker(app.messageStore, app.membership, app.rooms, app.locks, app.logger)
	app.reactions = core.NewReactions(app.messageStore, app.membership, app.rooms, app.locks, app.logger)
	app.typing = core.NewTypingCoordinator(app.membership, app.rooms, app.logger)
	app.calls = core.NewCallRelay(app.registry, app.rooms, app.logger)
	app.chats = core.NewChats(app.chatStore, app.membership, app.rooms, app.registry, app.locks, app.logger)

	app.events = core.NewEventRouter(app.logger)
	app.registerEventHandlers()

	app.conns = core.NewConnManager(app.context, app.registry, app.rooms, app.locks, app.events,
		core.WithLogger(app.logger),
		core.WithCheckOrigin(app.checkOrigin),
		core.WithConnOptions(core.ConnOptions{
			SendBuffer:      config.WS.SendBuffer,
			MaxMessageSize:  config.WS.MaxMessageSize,
			EventsPerSecond: config.WS.EventsPerSecond,
			EventBurst:      config.WS.EventBurst,
		}))
	app.conns.OnUserConnected(app.onUserConnected)
	app.conns.OnConnectionOpened(app.onConnectionOpened)
	app.conns.OnConnectionClosed(app.onConnectionClosed)
	app.conns.OnUserDisconnected(app.onUserDisconnected)

	app.limiter = NewClientRateLimiter(config.RateLimit.RPS, config.RateLimit.Burst, 2*time.Minute)
	go app.limiter.Run(app.context)

	app.userHandler = NewUserHandler(app.userStore, app.presence)
	app.chatHandler = NewChatHandler(app.chats)
	app.messageHandler = NewMessageHandler(app.pipeline, app.receipts, app.reactions)
	app.authHandler = NewAuthHandler(app.authStore, config.Mode == ProdMode)

	app.routes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Hostname, config.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}
	if config.TLS.Crt != "" && config.TLS.Key != "" {
		app.server.TLSConfig = defaultTLSConfig.Clone()
	}
	return app, nil
}

func (app *App) openStorage() error {
	var err error
	sqliteOptions := &core.SQLiteDBOption{
		Mode:         "rwc",
		JournalMode:  "WAL",
		BusyTimeout:  5000,
		TxLock:       "immediate",
		MaxOpenConns: 8,
	}
	if app.config.SQLite.File == ":memory:" {
		sqliteOptions = nil
	}
	app.db, err = core.NewSQLiteDB(app.config.SQLite.File, app.config.SQLite.Migrations, sqliteOptions)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	app.AddCleanupFunc(func(ctx context.Context) error {
		return app.db.Close()
	})
	if err := app.db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if app.config.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.config.Redis.Addr,
			Password: app.config.Redis.Password,
			DB:       app.config.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(app.context, 5*time.Second)
		defer cancel()
		if err := app.redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		app.AddCleanupFunc(func(ctx context.Context) error {
			return app.redis.Close()
		})
	}

	app.userStore = core.NewSQLiteUserStore(app.db.DB)
	app.chatStore = core.NewSQLiteChatStore(app.db.DB)
	app.messageStore = core.NewSQLiteMessageStore(app.db.DB)
	authStore := core.NewSQLiteAuthStore(app.db.DB, app.userStore, []byte(app.config.Auth.Secret),
		core.WithTokenExp(app.config.Auth.TokenTTL))
	app.authStore = authStore
	go app.purgeBlacklist(authStore)
	return nil
}

// purgeBlacklist drops revoked tokens that have expired anyway, once an hour.
func (app *App) purgeBlacklist(store *core.SQLiteAuthStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-app.context.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeBlacklist(app.context)
			if err != nil {
				app.logger.Error(fmt.Sprintf("PurgeBlacklist: %v", err))
				continue
			}
			app.logger.Debug("purged blacklist", slog.Int64("tokens", n))
		}
	}
}

func (app *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range app.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (app *App) routes() {
	app.router = router.New(router.WithLogger(app.logger))

	app.router.RegisterErrorMapper(core.ErrUnauthenticated, publicError(http.StatusUnauthorized))
	app.router.RegisterErrorMapper(core.ErrBadCredentials, publicError(http.StatusUnauthorized))
	app.router.RegisterErrorMapper(core.ErrUnauthorized, publicError(http.StatusForbidden))
	app.router.RegisterErrorMapper(core.ErrNotFound, publicError(http.StatusNotFound))
	app.router.RegisterErrorMapper(core.ErrInvalidInput, publicError(http.StatusBadRequest))
	app.router.RegisterErrorMapper(core.ErrConflict, publicError(http.StatusConflict))

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	authMiddleware := core.JWTMiddleware(app.authStore)

	app.router.Router.Handle("/metrics", promhttp.Handler())

	app.router.With(authMiddleware).Get("/ws", func(w http.ResponseWriter, r *http.Request) error {
		session := core.SessionFromRequest(r)
		// the upgrader has already replied on failure
		if err := app.conns.Connect(session.Username, w, r); err != nil {
			app.logger.Debug(err.Error(), slog.String("user", session.Username))
		}
		return nil
	})

	app.router.Route("/api", func(api *router.Router) {
		api.Group(func(r *router.Router) {
			r.Use(app.limiter.Middleware())
			r.Post("/users", app.userHandler.RegisterUserHandler)
			r.Post("/auth/signin", app.authHandler.SigninHandler)
		})

		api.Group(func(r *router.Router) {
			r.Use(authMiddleware)

			r.Post("/auth/signout", app.authHandler.SignoutHandler)

			r.Get("/users", app.userHandler.SearchUsersHandler)
			r.Get("/users/me", app.userHandler.MeHandler)
			r.Put("/users/status", app.userHandler.UpdateStatusHandler)
			r.Get("/users/{username}", app.userHandler.GetUserByUsernameHandler)

			r.Get("/chats", app.chatHandler.GetMyChatsHandler)
			r.Post("/chats/direct", app.chatHandler.CreateDirectChatHandler)
			r.Post("/chats/group", app.chatHandler.CreateGroupChatHandler)
			r.Put("/chats/group/{chatID}", app.chatHandler.UpdateGroupHandler)
			r.Put("/chats/group/{chatID}/add", app.chatHandler.AddMemberHandler)
			r.Put("/chats/group/{chatID}/remove", app.chatHandler.RemoveMemberHandler)
			r.Get("/chats/{chatID}", app.chatHandler.GetChatHandler)

			r.Post("/messages", app.messageHandler.SendMessageHandler)
			r.Get("/messages/{chatID}", app.messageHandler.GetChatMessagesHandler)
			r.Put("/messages/{messageID}", app.messageHandler.EditMessageHandler)
			r.Delete("/messages/{messageID}", app.messageHandler.DeleteMessageHandler)
			r.Post("/messages/{messageID}/react", app.messageHandler.ReactHandler)
			r.Put("/messages/{messageID}/read", app.messageHandler.ReadHandler)
			r.Put("/messages/{messageID}/deliver", app.messageHandler.DeliverHandler)
		})
	})
}

// publicError responds with code and the client safe message of the error.
func publicError(code int) router.ErrorMapper {
	return router.MessageMapper(code, core.PublicMessage)
}

// Handler returns the root handler of the app.
func (app *App) Handler() http.Handler {
	return app.router
}

// Start serves until the app context is cancelled, then shuts down gracefully.
func (app *App) Start() error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(fmt.Sprintf("app running in %s mode on: %s", app.config.Mode, app.server.Addr))
		var err error
		if app.config.TLS.Crt != "" && app.config.TLS.Key != "" {
			err = app.server.ListenAndServeTLS(app.config.TLS.Crt, app.config.TLS.Key)
		} else {
			err = app.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-app.context.Done():
	case serveErr = <-errCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		app.logger.Info("app shutdown timed out")
		return errors.Join(serveErr, err)
	}
	app.logger.Info("app shutdown gracefully")
	return serveErr
}

// Shutdown stops accepting requests, closes every connection and releases storage.
// The server and connections go first so that disconnects can still persist presence.
func (app *App) Shutdown(ctx context.Context) error {
	var errs []error
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if app.conns != nil {
		if err := app.conns.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close connections: %w", err))
		}
	}
	for _, f := range app.cleanupFuncs {
		if err := f(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	app.cleanupFuncs = nil
	return errors.Join(errs...)
}

func (app *App) AddCleanupFunc(f func(context.Context) error) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}
