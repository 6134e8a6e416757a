package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"matrimony_match/internal/repository/mysql"
	"matrimony_match/internal/repository/redis"
	"matrimony_match/internal/service"
)

var (
	rebuildUser uint64
	rebuildAll  bool
	relayOnce   bool

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer a.close()
			if err = mysql.Migrate(a.db); err != nil {
				return err
			}
			a.log.Info("migration finished")
			return nil
		},
	}

	rebuildCmd = &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild quick lists by replaying the interaction ledger",
		RunE:  runRebuild,
	}

	relayCmd = &cobra.Command{
		Use:   "relay",
		Short: "Run the outbox relay as a standalone worker",
		RunE:  runRelay,
	}
)

func init() {
	rebuildCmd.Flags().Uint64Var(&rebuildUser, "user", 0, "rebuild a single user's quick list")
	rebuildCmd.Flags().BoolVar(&rebuildAll, "all", false, "rebuild every quick list")
	relayCmd.Flags().BoolVar(&relayOnce, "once", false, "drain one batch and exit")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if (rebuildUser == 0) == !rebuildAll {
		return errors.New("exactly one of --user or --all is required")
	}
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock := &redis.DistLock{RDB: a.rdb, TTL: 5 * time.Minute}
	rebuild := service.NewRebuildService(a.db, lock, a.summaryCache(), a.log)
	if rebuildUser != 0 {
		return rebuild.RebuildQuickList(ctx, rebuildUser)
	}

	n, err := service.NewQuickListReconciler(a.db, a.cfg.Reconcile, rebuild, a.log).ReconcileOnce(ctx)
	a.log.Info("rebuild finished", zap.Int("rebuilt", n))
	return err
}

func runRelay(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.close()

	sender, closeSender, err := buildSender(a, service.NewProfileStore(a.db))
	if err != nil {
		return err
	}
	defer closeSender()

	relayer := service.NewOutboxRelayer(a.db, a.cfg.Outbox, sender, a.metrics, a.log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if relayOnce {
		n := relayer.DrainOnce(ctx)
		a.log.Info("outbox batch relayed", zap.Int("sent", n))
		return nil
	}
	a.log.Info("outbox relay started")
	relayer.Run(ctx)
	return nil
}
