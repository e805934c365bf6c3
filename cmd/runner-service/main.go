package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxrunner/internal/common/mq"
	"boxrunner/internal/runner/controller"
	"boxrunner/internal/runner/engine"
	"boxrunner/internal/runner/repository"
	"boxrunner/internal/runner/service"
	"boxrunner/internal/runner/workspace"
	"boxrunner/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/runner_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	// The transport must be reachable at startup; a job runner that
	// cannot consume or publish is not worth starting.
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = mqClient.Ping(pingCtx)
	cancelPing()
	if err != nil {
		logger.Error(context.Background(), "kafka unreachable", zap.Error(err))
		return
	}

	// Both streams exist before anything consumes or publishes; an
	// already-existing stream is left as is.
	for _, topic := range []string{appCfg.Streams.Inbound, appCfg.Streams.Outbound} {
		ensureCtx, cancelEnsure := context.WithTimeout(context.Background(), 10*time.Second)
		err = mqClient.EnsureTopic(ensureCtx, mq.TopicConfig{
			Topic:             topic,
			NumPartitions:     appCfg.Streams.Partitions,
			ReplicationFactor: appCfg.Streams.Replicas,
			RetentionBytes:    appCfg.Streams.RetentionBytes,
		})
		cancelEnsure()
		if err != nil {
			logger.Error(context.Background(), "ensure stream failed",
				zap.String("topic", topic), zap.Error(err))
			return
		}
	}

	workspaces, err := workspace.NewManager(appCfg.Workspace.TemplateDir, appCfg.Workspace.RootDir)
	if err != nil {
		logger.Error(context.Background(), "init workspace manager failed", zap.Error(err))
		return
	}

	resolver := engine.NewLocalResolver(appCfg.Profiles)
	eng, err := engine.NewEngine(appCfg.Runtime.toEngineConfig(), resolver)
	if err != nil {
		logger.Error(context.Background(), "init isolation engine failed", zap.Error(err))
		return
	}

	publisher := repository.NewMQResultPublisher(mqClient, appCfg.Streams.Outbound)

	runnerSvc, err := service.NewService(service.Config{
		Workspaces:     workspaces,
		Engine:         eng,
		Publisher:      publisher,
		WorkerPoolSize: appCfg.Worker.PoolSize,
	})
	if err != nil {
		logger.Error(context.Background(), "init runner service failed", zap.Error(err))
		return
	}

	err = mqClient.Subscribe(context.Background(), appCfg.Streams.Inbound, runnerSvc.HandleMessage, &mq.SubscribeOptions{
		ConsumerGroup: appCfg.Streams.ConsumerGroup,
	})
	if err != nil {
		logger.Error(context.Background(), "subscribe inbound stream failed", zap.Error(err))
		return
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start consumer failed", zap.Error(err))
		return
	}
	logger.Info(context.Background(), "job consumer started",
		zap.String("inbound", appCfg.Streams.Inbound),
		zap.String("outbound", appCfg.Streams.Outbound),
		zap.Int("pool_size", appCfg.Worker.PoolSize))

	httpServer := buildHTTPServer(appCfg.Server, runnerSvc, mqClient)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "runner http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	// Stop pulling new jobs first, then let in-flight jobs finish and
	// publish before the producer goes away.
	_ = mqClient.Stop()
	runnerSvc.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, svc *service.Service, pinger controller.Pinger) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	runnerController := controller.NewRunnerController(svc, pinger)
	router.GET("/healthz", runnerController.Health)

	api := router.Group("/api/v1/runner")
	api.GET("/stats", runnerController.GetStats)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
