package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/interfacehive/credit-engine/internal/config"
	"github.com/interfacehive/credit-engine/internal/events"
	"github.com/interfacehive/credit-engine/pkg/logger"
	"github.com/interfacehive/credit-engine/pkg/prom"
	"github.com/interfacehive/credit-engine/pkg/redis"
	"github.com/interfacehive/credit-engine/pkg/worker"
	"github.com/valyala/fasthttp"
)

const sinkTimeout = 5 * time.Second

// deliveryJob carries one stream delivery into the worker pool. The consumer
// handler blocks on result so ack/retry semantics stay with the stream.
type deliveryJob struct {
	delivery *events.Delivery
	result   chan error
}

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	if config.Get().NotifierSinkURL == "" {
		logger.Error("NOTIFIER_SINK_URL is required")
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

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Warn("failed registering metrics", "error", err)
	}
	if config.Get().AppDebugMetricsAddr != "" {
		go prom.ListenAndServe(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}

	consumer, err := events.NewConsumer(redisAdap, events.ConsumerConfig{
		Stream:            config.Get().EventStream,
		ConsumerGroup:     config.Get().EventConsumerGroup,
		ConsumerName:      config.Get().EventConsumerName,
		MaxRetries:        config.Get().EventMaxRetries,
		VisibilityTimeout: config.Get().EventVisibilityTimeout,
		PollInterval:      config.Get().EventPollInterval,
		BatchSize:         config.Get().EventBatchSize,
		EnableDLQ:         config.Get().EventEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating event consumer", "error", err)
		return
	}

	client := &fasthttp.Client{
		ReadTimeout:         sinkTimeout,
		WriteTimeout:        sinkTimeout,
		MaxIdleConnDuration: 60 * time.Second,
	}
	sinkURL := config.Get().NotifierSinkURL

	pool := worker.NewWorkerManager(int(config.Get().EventBatchSize), config.Get().NotifierWorkers, nil)
	pool.SetWorker(func(workerIndex int, job interface{}) {
		j, ok := job.(deliveryJob)
		if !ok {
			return
		}
		j.result <- postEvent(client, sinkURL, j.delivery)
	})
	go func() {
		if err := pool.Start(); err != nil {
			logger.Info("worker pool stopped", "reason", err)
		}
	}()

	err = consumer.Consume(func(ctx context.Context, d *events.Delivery) error {
		job := deliveryJob{delivery: d, result: make(chan error, 1)}
		pool.Enqueue(job)
		select {
		case err := <-job.result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		logger.Error("failed to start consumer", "error", err)
		return
	}

	logger.Info("notifier running", "stream", config.Get().EventStream,
		"group", config.Get().EventConsumerGroup, "workers", config.Get().NotifierWorkers, "sink", sinkURL)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	if err := consumer.Stop(10 * time.Second); err != nil {
		logger.Warn("consumer did not stop cleanly", "error", err)
	}
	pool.Exit()
}

// postEvent pushes one event to the notification sink. A non-2xx response is
// an error so the delivery stays pending and gets retried.
func postEvent(client *fasthttp.Client, url string, d *events.Delivery) error {
	body, err := json.Marshal(d.Event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := client.DoDeadline(req, resp, time.Now().Add(sinkTimeout)); err != nil {
		return fmt.Errorf("sink request failed: %w", err)
	}

	code := resp.StatusCode()
	if code < fasthttp.StatusOK || code >= fasthttp.StatusMultipleChoices {
		return fmt.Errorf("sink returned status %d", code)
	}

	logger.Info("notification delivered", "delivery_id", d.ID, "type", d.Event.Type,
		"contribution_id", d.Event.ContributionID, "attempts", d.Attempts)

	return nil
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
