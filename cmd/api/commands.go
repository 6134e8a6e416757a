package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"matrimony_match/internal/config"
	"matrimony_match/internal/logger"
	"matrimony_match/internal/metrics"
	"matrimony_match/internal/repository/mysql"
	"matrimony_match/internal/repository/redis"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "api",
		Short:         "Matrimony interaction engine: shortlist, block, match requests and views",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, rebuildCmd, relayCmd)
}

// app 子命令共用的依赖
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	rdb     *goredis.Client
	reg     *prometheus.Registry
	metrics *metrics.Metrics
}

// bootstrap 加载配置并建立 MySQL 连接；withRedis 为 true 时同时连接 Redis
func bootstrap(withRedis bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := mysql.InitDB(cfg.MySQL, log)
	if err != nil {
		return nil, err
	}
	if cfg.MySQL.AutoMigrate {
		if err = mysql.Migrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	a := &app{cfg: cfg, log: log, db: db}
	if withRedis {
		if a.rdb, err = redis.Open(cfg.Redis); err != nil {
			a.close()
			return nil, err
		}
	}

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.reg)
	return a, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.log.Sync()
}

// summaryCache 需要 bootstrap(true)
func (a *app) summaryCache() *redis.SummaryCacheRepository {
	return redis.NewSummaryCacheRepository(a.rdb, a.cfg.Redis.SummaryTTL)
}
