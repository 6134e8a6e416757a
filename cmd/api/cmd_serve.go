package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"matrimony_match/internal/handler"
	"matrimony_match/internal/middleware"
	"matrimony_match/internal/pkg"
	"matrimony_match/internal/repository/redis"
	"matrimony_match/internal/router"
	"matrimony_match/internal/service"
)

var (
	withRelay bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&withRelay, "relay", true, "run the outbox relay inside the API process")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	cache := a.summaryCache()
	profiles := service.NewProfileStore(a.db)
	transitions := service.NewTransitionService(a.db, cache, a.metrics, a.log)
	listing := service.NewListingService(a.db, profiles, cache, a.metrics, a.log)
	status := service.NewStatusService(a.db)
	candidates := service.NewCandidateService(a.db, profiles)

	engine := router.InitRouter(router.Deps{
		Log:          a.log,
		JWTSecret:    []byte(a.cfg.JWT.AccessSecret),
		Limiter:      middleware.NewRateLimiter(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst),
		Interactions: handler.NewInteractionHandler(transitions, listing, status),
		Candidates:   handler.NewCandidateHandler(candidates),
		Gatherer:     a.reg,
		Health: func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			if err = sqlDB.PingContext(ctx); err != nil {
				return err
			}
			return a.rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      router.WithCORS(engine, a.cfg.CORS.AllowedOrigins),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if withRelay {
		sender, closeSender, err := buildSender(a, profiles)
		if err != nil {
			return err
		}
		defer closeSender()
		relayer := service.NewOutboxRelayer(a.db, a.cfg.Outbox, sender, a.metrics, a.log)
		go relayer.Run(ctx)
	}

	if a.cfg.Reconcile.Enabled {
		lock := &redis.DistLock{RDB: a.rdb, TTL: 5 * time.Minute}
		rebuild := service.NewRebuildService(a.db, lock, cache, a.log)
		reconciler := service.NewQuickListReconciler(a.db, a.cfg.Reconcile, rebuild, a.log)
		a.log.Info("quick list reconciler started", zap.Duration("interval", a.cfg.Reconcile.Interval))
		go reconciler.ReconcilerRun(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildSender 按配置组合 Kafka 与邮件投递，都未开启时只打日志
func buildSender(a *app, profiles service.ProfileStore) (service.Sender, func(), error) {
	var (
		senders []service.Sender
		closers []func()
	)
	if a.cfg.Kafka.Enabled {
		producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: a.cfg.Kafka.Brokers, Topic: a.cfg.Kafka.Topic})
		if err != nil {
			return nil, nil, err
		}
		senders = append(senders, service.KafkaSender(producer))
		closers = append(closers, func() { _ = producer.Close() })
	}
	if a.cfg.SMTP.Enabled {
		mailer := pkg.NewSMTPMailer(pkg.SMTPConfig{
			Host:     a.cfg.SMTP.Host,
			Port:     a.cfg.SMTP.Port,
			Username: a.cfg.SMTP.Username,
			Password: a.cfg.SMTP.Password,
			From:     a.cfg.SMTP.From,
		})
		senders = append(senders, service.NewMailNotifier(mailer, profiles, a.log).Send)
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	switch len(senders) {
	case 0:
		return service.LogSender(a.log), closeAll, nil
	case 1:
		return senders[0], closeAll, nil
	}
	return service.FanoutSender(senders...), closeAll, nil
}
