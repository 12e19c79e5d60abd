package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/config"
	"church-quiz-service/internal/infra/csvstore"
	"church-quiz-service/internal/infra/memory"
	pgstore "church-quiz-service/internal/infra/postgres"
	redisinfra "church-quiz-service/internal/infra/redis"
	"church-quiz-service/internal/logger"
	transport "church-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// services is everything the transports need, plus what must be closed on exit.
type services struct {
	store       app.RecordStore
	bank        app.QuestionBank
	quiz        *app.QuizService
	auth        *app.AuthService
	leaderboard *app.LeaderboardService
	admin       *app.AdminService

	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	svc := &services{}

	if cfg.UsePostgres() {
		if err := runMigrations(ctx, cfg.Postgres.URL); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, pool.Close)
		svc.store = pgstore.New(pool).Records()
		log.Info().Msg("record store: postgres")
	} else {
		svc.store = csvstore.New(cfg.DataDir()).Records()
		log.Info().Str("dir", cfg.DataDir()).Msg("record store: csv")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		svc.closers = append(svc.closers, func() { _ = redisClient.Close() })
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, time.Minute)
	var sessions app.SessionRepository
	if redisClient != nil {
		svc.bank = redisinfra.NewQuestionCache(redisClient, svc.store.Questions, cacheTTL)
		sessions = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	} else {
		svc.bank = memory.NewQuestionCache(svc.store.Questions, cacheTTL)
		sessions = memory.NewSessionStore(config.TTLDuration(cfg.Server.SessionTTL, 30*time.Minute))
	}

	svc.quiz = app.NewQuizService(sessions, svc.store.Users, svc.bank, svc.store.Scores, app.GameConfig{
		QuestionLimit:   cfg.Quiz.QuestionLimit,
		QuestionTimeout: config.TTLDuration(cfg.Quiz.QuestionTimeout, app.DefaultQuestionTimeout),
		Shuffle:         cfg.Quiz.Shuffle,
	})
	svc.auth = app.NewAuthService(svc.store.Users, app.AuthConfig{
		RegistrationLimit: cfg.Auth.RegistrationLimit,
		AdminName:         cfg.Auth.AdminName,
		AdminPassword:     cfg.Auth.AdminPassword,
	})
	svc.leaderboard = app.NewLeaderboardService(svc.store.Users, svc.store.Scores, cfg.Leaderboard.Size)
	svc.admin = app.NewAdminService(svc.store, svc.bank, svc.auth)
	return svc, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.auth.Bootstrap(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/game", transport.NewWSHandler(svc.quiz).ServeWS)
	transport.NewAPIHandler(svc.quiz, svc.auth, svc.leaderboard, svc.admin).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket connections stay open for a whole game
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func initLogger(cfg config.Config) {
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
}
