package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"mathbattle/internal/config"
	"mathbattle/internal/infra/memory"
	pghistory "mathbattle/internal/infra/postgres"
	redisstore "mathbattle/internal/infra/redis"
	"mathbattle/internal/server"
)

// NewServeCmd starts the practice game server.
func NewServeCmd(configPath *string) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides config)")
	return cmd
}

func runServe(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	port := portFlag
	if port == "" {
		port = cfg.Server.Port
	}
	if port == "" {
		port = "8080"
	}

	var scores server.ScoreStore = memory.NewScoreStore()
	if cfg.Server.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Server.Redis.Addr,
			Password: cfg.Server.Redis.Password,
			DB:       cfg.Server.Redis.DB,
		})
		scores = redisstore.NewScoreStore(client, config.Duration(cfg.Server.Redis.TTL, 10*time.Minute))
	}

	var history server.HistoryRecorder
	if cfg.Server.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Server.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		history = pghistory.NewHistory(pool)
	}

	srv := server.New(scores, history, battleMode(cfg), cfg.Battle.MaxTime)
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("game server listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-stop:
			log.Println("shutting down game server...")
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
