package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whois/internal/config"
	"whois/internal/database"
	"whois/internal/events"
	httpapi "whois/internal/http"
	"whois/internal/logger"
	"whois/internal/mqtt"
	"whois/internal/redis"
	"whois/internal/repository"
	"whois/internal/service"
	"whois/internal/store"

	"go.uber.org/zap"
)

const serviceName = "whois"

func main() {
	args := os.Args[1:]

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		if len(args) > 0 {
			reportSetupFailure(args, err)
			return
		}
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, serviceName)
	if err != nil {
		if len(args) > 0 {
			reportSetupFailure(args, err)
			return
		}
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 组装目录服务（存储、缓存、事件）
	svc, cleanup, err := buildDirectory(ctx, cfg, log)
	if err != nil {
		if len(args) > 0 {
			log.Error("Failed to initialise directory", zap.Error(err))
			reportSetupFailure(args, err)
			return
		}
		log.Fatal("Failed to initialise directory", zap.Error(err))
	}
	defer cleanup()

	// 4. 批处理模式：逐条执行参数中的命令，退出码始终为 0
	if len(args) > 0 {
		runner := service.NewBatchRunner(svc, os.Stdout, log)
		if err := runner.Run(ctx, args); err != nil {
			log.Error("Batch run aborted", zap.Error(err))
		}
		return
	}

	// 5. 网络服务模式
	handler := httpapi.NewHandler(svc, cfg.Server.MaxBodyBytes, log)
	srv := service.NewServer(service.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxConns:     cfg.Server.MaxConns,
	}, handler, log)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start()
	}()

	// 6. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Warn("Server stop timed out", zap.Error(err))
		}
	case err := <-serverErrChan:
		if err != nil {
			cleanup()
			log.Fatal("Server error", zap.Error(err))
		}
	}

	log.Info("whois server stopped")
}

// buildDirectory 按配置创建存储、缓存与事件发布器；返回的 cleanup 释放全部资源
func buildDirectory(ctx context.Context, cfg *config.Config, log *zap.Logger) (*service.DirectoryService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	deps := service.DirectoryDeps{Logger: log}

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Info("Using in-memory directory store")
		deps.Repo = repository.NewMemoryDirectoryRepository()
	default:
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { database.Close(db) })

		if cfg.Database.AutoMigrate {
			if err := database.EnsureSchema(ctx, db); err != nil {
				cleanup()
				return nil, cleanup, err
			}
		}
		log.Info("Connected to PostgreSQL",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
		deps.Repo = repository.NewPostgresDirectoryRepository(db)
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Events.Backend == config.EventsBackendRedis {
		redisClient = redis.NewRedisClient(&cfg.Redis)
		closers = append(closers, func() { redisClient.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redis.Ping(pingCtx, redisClient)
		cancel()
		if err != nil {
			// 缓存与事件都是可选能力，Redis 不可用时只记录告警
			log.Warn("Redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	if cfg.Cache.Enabled {
		deps.Cache = store.NewRedisKV(redisClient)
		deps.CachePrefix = cfg.Cache.Prefix
		deps.CacheTTL = cfg.Cache.TTL
	}

	switch cfg.Events.Backend {
	case config.EventsBackendRedis:
		deps.Publisher = events.NewRedisStreamPublisher(redisClient, cfg.Events.Stream)
	case config.EventsBackendMQTT:
		client, err := mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, change events disabled", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
			break
		}
		pub := events.NewMQTTPublisher(client, cfg.MQTT.Topic, cfg.MQTT.QoS)
		closers = append(closers, func() { pub.Close() })
		deps.Publisher = pub
	}

	return service.NewDirectoryService(deps), cleanup, nil
}

// reportSetupFailure 批处理模式下初始化失败时，每条命令输出一行错误
func reportSetupFailure(args []string, err error) {
	for range args {
		fmt.Fprintf(os.Stdout, "Fault in Command Processing: %v\n", err)
	}
}
