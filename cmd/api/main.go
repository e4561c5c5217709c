package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/interfacehive/credit-engine/internal/config"
	"github.com/interfacehive/credit-engine/internal/events"
	"github.com/interfacehive/credit-engine/internal/handlers"
	"github.com/interfacehive/credit-engine/internal/repository"
	"github.com/interfacehive/credit-engine/internal/services"
	xhttp "github.com/interfacehive/credit-engine/pkg/http"
	"github.com/interfacehive/credit-engine/pkg/logger"
	"github.com/interfacehive/credit-engine/pkg/pg"
	"github.com/interfacehive/credit-engine/pkg/prom"
	"github.com/interfacehive/credit-engine/pkg/redis"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := config.Get().AppEnv == "dev"
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	publisher, err := events.NewPublisher(redisAdap, config.Get().EventStream, config.Get().EventStreamMaxLen)
	if err != nil {
		logger.Error("failed creating event publisher", "error", err)
		return
	}

	if err := prom.Create("api", config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Warn("failed registering metrics", "error", err)
	}
	if config.Get().AppDebugMetricsAddr != "" {
		go prom.ListenAndServe(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}

	ledgerRepo := repository.NewLedgerRepository(db)
	contributionRepo := repository.NewContributionRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	moderationLogRepo := repository.NewModerationLogRepository(db)

	creditService := services.NewCreditService(ledgerRepo, contributionRepo, projectRepo, userRepo)
	contributionService := services.NewContributionService(contributionRepo, projectRepo, userRepo, creditService, db, publisher)
	moderationService := services.NewModerationService(ledgerRepo, contributionRepo, projectRepo, userRepo, moderationLogRepo, db)

	contributionHandler := handlers.NewContributionHandler(contributionService)
	creditHandler := handlers.NewCreditHandler(creditService)
	moderationHandler := handlers.NewModerationHandler(moderationService)
	healthHandler := handlers.NewHealthHandler()

	g := s.Router.Group("/api/v1")
	handlers.RegisterContributionRoutes(g, contributionHandler)
	handlers.RegisterCreditRoutes(g, creditHandler)
	handlers.RegisterModerationRoutes(g, moderationHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(config.Get().HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
