package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NotificationRequest is the event payload the notifier posts. Field names
// match the stream payload produced by the engine.
type NotificationRequest struct {
	Type           string    `json:"type" binding:"required"`
	ContributionID uuid.UUID `json:"contribution_id" binding:"required"`
	ProjectID      uuid.UUID `json:"project_id"`
	ProjectTitle   string    `json:"project_title"`
	ContributorID  uuid.UUID `json:"contributor_id"`
	RecipientEmail string    `json:"recipient_email"`
	CreditAwarded  bool      `json:"credit_awarded"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NotificationResponse acknowledges one accepted notification.
type NotificationResponse struct {
	NotificationID string    `json:"notification_id"`
	SinkID         string    `json:"sink_id"`
	AcceptedAt     time.Time `json:"accepted_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	SinkID     string    `json:"sink_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
	Received   int64     `json:"received"`
}

// MockSink simulates a notification delivery collaborator. An accept rate
// below 1.0 makes it reject a share of requests so the notifier's retry and
// dead-letter paths can be exercised end to end.
type MockSink struct {
	acceptRate float64
	minDelay   time.Duration
	maxDelay   time.Duration
	sinkID     string
	rng        *rand.Rand

	mu       sync.Mutex
	received int64
	byType   map[string]int64
	recent   []NotificationRequest
}

const recentWindow = 100

func NewMockSink(acceptRate float64, minDelay, maxDelay time.Duration) *MockSink {
	return &MockSink{
		acceptRate: acceptRate,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		sinkID:     "MOCK_SINK_" + uuid.New().String()[:8],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		byType:     make(map[string]int64),
	}
}

func (m *MockSink) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockSink) shouldAccept() bool {
	return m.rng.Float64() < m.acceptRate
}

func (m *MockSink) record(req *NotificationRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
	m.byType[req.Type]++
	if len(m.recent) >= recentWindow {
		m.recent = m.recent[1:]
	}
	m.recent = append(m.recent, *req)
}

func (m *MockSink) stats() (int64, map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType := make(map[string]int64, len(m.byType))
	for k, v := range m.byType {
		byType[k] = v
	}
	return m.received, byType
}

func (m *MockSink) recentNotifications() []NotificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationRequest, len(m.recent))
	copy(out, m.recent)
	return out
}

// Handler struct holds the mock sink and routes
type Handler struct {
	sink *MockSink
}

func NewHandler(sink *MockSink) *Handler {
	return &Handler{sink: sink}
}

// Notify handles a single notification delivery request
func (h *Handler) Notify(c *gin.Context) {
	var req NotificationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	// Simulate downstream latency
	time.Sleep(h.sink.randomDelay())

	if !h.sink.shouldAccept() {
		log.Warn().
			Str("type", req.Type).
			Str("contribution_id", req.ContributionID.String()).
			Msg("Notification rejected")

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Sink temporarily unavailable",
		})
		return
	}

	h.sink.record(&req)

	log.Info().
		Str("type", req.Type).
		Str("contribution_id", req.ContributionID.String()).
		Str("recipient", req.RecipientEmail).
		Bool("credit_awarded", req.CreditAwarded).
		Msg("Notification accepted")

	c.JSON(http.StatusOK, NotificationResponse{
		NotificationID: uuid.New().String(),
		SinkID:         h.sink.sinkID,
		AcceptedAt:     time.Now(),
	})
}

// Recent returns the last received notifications, newest last
func (h *Handler) Recent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"notifications": h.sink.recentNotifications(),
	})
}

// Stats returns received counts grouped by event type
func (h *Handler) Stats(c *gin.Context) {
	received, byType := h.sink.stats()
	c.JSON(http.StatusOK, gin.H{
		"received": received,
		"by_type":  byType,
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	received, _ := h.sink.stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		SinkID:     h.sink.sinkID,
		Timestamp:  time.Now(),
		AcceptRate: h.sink.acceptRate,
		Received:   received,
	})
}

// UpdateConfig allows changing sink behavior at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.AcceptRate != nil {
		if *config.AcceptRate >= 0 && *config.AcceptRate <= 1.0 {
			h.sink.acceptRate = *config.AcceptRate
			log.Info().Float64("rate", *config.AcceptRate).Msg("Updated accept rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Configuration updated",
		"accept_rate": h.sink.acceptRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/notifications", handler.Notify)
		v1.GET("/notifications/recent", handler.Recent)
		v1.GET("/notifications/stats", handler.Stats)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	acceptRate := getEnvFloat("ACCEPT_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 10*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 200*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Notification Sink")

	sink := NewMockSink(acceptRate, minDelay, maxDelay)
	handler := NewHandler(sink)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
