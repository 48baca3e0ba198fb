package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cipher-server-go/internal/app/services"
	"cipher-server-go/internal/domain/analysis"
	"cipher-server-go/internal/domain/eventbus"
	"cipher-server-go/internal/domain/session"
	sessionstore "cipher-server-go/internal/domain/session/store"
	"cipher-server-go/internal/domain/wake"
	platformconfig "cipher-server-go/internal/platform/config"
	platformerrors "cipher-server-go/internal/platform/errors"
	platformlogging "cipher-server-go/internal/platform/logging"
	platformstorage "cipher-server-go/internal/platform/storage"
	httptransport "cipher-server-go/internal/transport/http"
	httpwebapi "cipher-server-go/internal/transport/http/webapi"
	wstransport "cipher-server-go/internal/transport/ws"
)

const (
	busWorkers       = 4
	shutdownDeadline = 15 * time.Second
)

// Options tunes how the service boots.
type Options struct {
	// ConfigPath points at an optional YAML config file. Missing files fall
	// back to defaults plus environment overrides.
	ConfigPath string
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	configPath string

	config      *platformconfig.Config
	logger      *platformlogging.Logger
	db          *platformstorage.DB
	bus         *eventbus.Bus
	sessions    *session.Manager
	analysisSvc *analysis.Service
	wakeSession *wake.Session
	assistant   *services.Assistant
}

// Run boots the whole service: configuration, storage, the conversation state
// machine and the HTTP surface, then blocks until SIGINT/SIGTERM and shuts
// everything down in reverse order.
func Run(ctx context.Context, opts Options) error {
	state := &appState{configPath: opts.ConfigPath}

	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		return err
	}

	logger := state.logger
	logBootstrapGraph(InitGraph(), logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	state.assistant.Start(rootCtx)

	if err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	err := waitForShutdown(signalCtx, cancel, logger, group)

	state.assistant.Close()
	if closeErr := state.sessions.Close(); closeErr != nil {
		logger.WarnTag("BOOT", "session manager did not close cleanly: %v", closeErr)
	}
	state.bus.Close()
	if closeErr := state.db.Close(); closeErr != nil {
		logger.WarnTag("BOOT", "database did not close cleanly: %v", closeErr)
	}

	if err != nil {
		_ = logger.Close()
		return err
	}

	logger.InfoTag("BOOT", "shutdown complete")
	return logger.Close()
}

// InitGraph declares the initialisation steps and their dependencies.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:open-database",
			Title:     "Open database",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   openDatabaseStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "session:init-manager",
			Title:     "Initialise session manager",
			DependsOn: []string{"storage:open-database", "logging:init-provider"},
			Kind:      platformerrors.KindSession,
			Execute:   initSessionManagerStep,
		},
		{
			ID:        "analysis:init-backend",
			Title:     "Initialise analysis backend",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindAnalysis,
			Execute:   initAnalysisStep,
		},
		{
			ID:        "wake:init-session",
			Title:     "Initialise conversation state machine",
			DependsOn: []string{"storage:open-database", "eventbus:init", "logging:init-provider"},
			Kind:      platformerrors.KindWake,
			Execute:   initWakeSessionStep,
		},
		{
			ID:        "assistant:init-service",
			Title:     "Initialise assistant service",
			DependsOn: []string{"wake:init-session", "storage:open-database", "eventbus:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAssistantStep,
		},
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	for _, step := range steps {
		logger.DebugTag("BOOT", "init step complete: %s", step.Title)
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	// Tests may pre-seed the configuration.
	if state.config != nil {
		return nil
	}

	result, err := platformconfig.NewLoader(state.configPath).Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialise logging", err)
	}
	state.logger = logger

	origin := state.configPath
	if origin == "" {
		origin = "defaults"
	}
	logger.InfoTag("BOOT", "logging ready [%s] config=%s", state.config.Log.Level, origin)
	return nil
}

func openDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Storage.DataDir)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:open-database", "failed to open database", err)
	}
	state.db = db
	state.logger.InfoTag("BOOT", "database ready at %s", state.config.Storage.DataDir)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	state.bus = eventbus.New(busWorkers)
	return nil
}

func initSessionManagerStep(_ context.Context, state *appState) error {
	cfg := state.config.Session

	secret := cfg.TokenSecret
	if secret == "" {
		// Random secret: issued tokens stop verifying across restarts.
		secret = randomTokenSecret()
		state.logger.WarnTag("SESSION", "no token secret configured, using an ephemeral one")
	}

	tokens, err := session.NewTokenIssuer(secret)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSession, "session:init-manager", "failed to create token issuer", err)
	}
	if cfg.TokenTTL > 0 {
		tokens = tokens.WithTTL(cfg.TokenTTL.Std())
	}

	store, err := buildSessionStore(cfg.Store, state.db)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSession, "session:init-manager", "failed to create session store", err)
	}

	manager, err := session.NewManager(session.Options{
		Store:           store,
		Logger:          state.logger,
		Tokens:          tokens,
		CredentialTTL:   cfg.Store.TTL.Std(),
		CleanupInterval: cfg.CleanupInterval.Std(),
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSession, "session:init-manager", "failed to create session manager", err)
	}
	state.sessions = manager
	return nil
}

func randomTokenSecret() string {
	return uuid.NewString() + uuid.NewString()
}

func buildSessionStore(cfg platformconfig.SessionStoreConfig, db *platformstorage.DB) (sessionstore.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	storeCfg := sessionstore.Config{
		Driver: driver,
		TTL:    cfg.TTL.Std(),
	}

	switch driver {
	case "", sessionstore.DriverMemory:
		storeCfg.Driver = sessionstore.DriverMemory
	case "database", sessionstore.DriverSQLite:
		storeCfg.Driver = sessionstore.DriverSQLite
	case sessionstore.DriverRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis store requires an addr")
		}
		storeCfg.Redis = &sessionstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}
	default:
		return nil, fmt.Errorf("unsupported session store driver: %s", driver)
	}

	return sessionstore.New(storeCfg, sessionstore.Dependencies{DB: db})
}

func initAnalysisStep(_ context.Context, state *appState) error {
	cfg := state.config.Analysis
	if cfg.APIKey == "" {
		state.logger.InfoTag("ANALYSIS", "no API key configured, analysis endpoint disabled")
		return nil
	}

	svc, err := analysis.New(analysis.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: float32(cfg.Temperature),
		Timeout:     cfg.Timeout.Std(),
	}, state.logger)
	if err != nil {
		return err
	}
	state.analysisSvc = svc
	return nil
}

func initWakeSessionStep(ctx context.Context, state *appState) error {
	prefs := platformstorage.NewPreferenceStore(state.db)
	enabled, err := prefs.WakeDetectionEnabled(ctx)
	if err != nil {
		state.logger.WarnTag("WAKE", "failed to load wake toggle, assuming enabled: %v", err)
		enabled = true
	}

	recognizer := wstransport.NewRecognizer(wstransport.RecognizerConfig{
		GatewayURL:  state.config.Recognizer.GatewayURL,
		AuthToken:   state.config.Recognizer.AuthToken,
		DialTimeout: state.config.Recognizer.DialTimeout.Std(),
	}, state.logger)

	state.wakeSession = wake.NewSession(wake.Options{
		Config:     wakeConfigFrom(state.config.Wake),
		Recognizer: recognizer,
		Bus:        state.bus,
		Logger:     state.logger,
		Enabled:    enabled,
	})
	return nil
}

func wakeConfigFrom(cfg platformconfig.WakeConfig) wake.Config {
	return wake.Config{
		WakePhrases:      cfg.WakePhrases,
		PhoneticVariants: cfg.PhoneticVariants,
		EndPhrases:       cfg.EndPhrases,
		PausePhrases:     cfg.PausePhrases,

		ActivationResponses:   cfg.ActivationResponses,
		EndResponses:          cfg.EndResponses,
		PauseResponses:        cfg.PauseResponses,
		ContinuationResponses: cfg.ContinuationResponses,

		DebounceInterval:     cfg.DebounceInterval.Std(),
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		BaseBackoffDelay:     cfg.BaseBackoffDelay.Std(),
		BackoffCap:           cfg.BackoffCap.Std(),
		CooldownDuration:     cfg.CooldownDuration.Std(),
		InactivityTimeout:    cfg.InactivityTimeout.Std(),
		ResumeDelay:          cfg.ResumeDelay.Std(),
		RestartDelay:         cfg.RestartDelay.Std(),
	}
}

func initAssistantStep(_ context.Context, state *appState) error {
	assistant, err := services.NewAssistant(services.AssistantOptions{
		Session:       state.wakeSession,
		Preferences:   platformstorage.NewPreferenceStore(state.db),
		Conversations: platformstorage.NewConversationStore(state.db),
		Bus:           state.bus,
		Logger:        state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "assistant:init-service", "failed to create assistant", err)
	}
	state.assistant = assistant
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	cfg := state.config
	logger := state.logger

	router, err := httptransport.Build(httptransport.Options{
		Config:   cfg,
		Logger:   logger,
		Sessions: state.sessions,
	})
	if err != nil {
		return err
	}

	httpwebapi.NewService(state.assistant, state.analysisSvc, state.sessions, logger).
		RegisterRoutes(router.API, router.Secured)

	router.Engine.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", nil)
	})

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port)),
		Handler: router.Engine,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", server.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutdown requested: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		return nil
	case <-time.After(shutdownDeadline):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
}
