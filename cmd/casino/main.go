package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DepositRequest is the cashdesk credit call the gateway makes.
type DepositRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Reference string `json:"reference" binding:"required"`
}

// DepositResponse mirrors the real cashdesk wire format.
type DepositResponse struct {
	Success     bool   `json:"success"`
	OperationID string `json:"operation_id,omitempty"`
	Message     string `json:"message,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	CashdeskID  string    `json:"cashdesk_id"`
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
}

// MockCashdesk simulates a betting platform cashdesk API. Special account
// prefixes trigger deterministic failures so the gateway's outcome handling
// can be exercised end to end:
//
//	blocked-*  account_blocked
//	missing-*  account_not_found
//	slow-*     responds after a long delay
type MockCashdesk struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	cashdeskID  string
	rng         *rand.Rand

	mu   sync.Mutex
	seen map[string]string // reference -> operation_id
}

func NewMockCashdesk(successRate float64, minDelay, maxDelay time.Duration) *MockCashdesk {
	return &MockCashdesk{
		successRate: successRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		cashdeskID:  "MOCK_CASHDESK_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		seen:        make(map[string]string),
	}
}

func (m *MockCashdesk) deposit(req *DepositRequest) (int, *DepositResponse) {
	delay := m.randomDelay()
	if strings.HasPrefix(req.AccountID, "slow-") {
		delay = 10 * time.Second
	}
	time.Sleep(delay)

	m.mu.Lock()
	if op, ok := m.seen[req.Reference]; ok {
		m.mu.Unlock()
		log.Info().
			Str("reference", req.Reference).
			Str("operation_id", op).
			Msg("Duplicate reference, returning original operation")
		return http.StatusConflict, &DepositResponse{
			Success:     false,
			OperationID: op,
			ErrorCode:   "duplicate",
			Message:     "reference already processed",
		}
	}
	m.mu.Unlock()

	switch {
	case strings.HasPrefix(req.AccountID, "missing-"):
		return http.StatusNotFound, &DepositResponse{
			Success:   false,
			ErrorCode: "account_not_found",
			Message:   "no such account",
		}
	case strings.HasPrefix(req.AccountID, "blocked-"):
		return http.StatusForbidden, &DepositResponse{
			Success:   false,
			ErrorCode: "account_blocked",
			Message:   "account is blocked",
		}
	}

	if !m.shouldSucceed() {
		log.Warn().
			Str("account_id", req.AccountID).
			Str("reference", req.Reference).
			Msg("Simulated transient failure")
		return http.StatusInternalServerError, &DepositResponse{
			Success:   false,
			ErrorCode: "internal_error",
			Message:   "temporary failure, retry later",
		}
	}

	op := uuid.New().String()
	m.mu.Lock()
	m.seen[req.Reference] = op
	m.mu.Unlock()

	log.Info().
		Str("account_id", req.AccountID).
		Str("amount", req.Amount).
		Str("reference", req.Reference).
		Str("operation_id", op).
		Dur("delay", delay).
		Msg("Deposit credited")

	return http.StatusOK, &DepositResponse{
		Success:     true,
		OperationID: op,
		Message:     "credited",
	}
}

func (m *MockCashdesk) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockCashdesk) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

// Handler struct holds the mock cashdesk and routes
type Handler struct {
	cashdesk *MockCashdesk
}

func NewHandler(cashdesk *MockCashdesk) *Handler {
	return &Handler{cashdesk: cashdesk}
}

// Deposit handles credit requests
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, DepositResponse{
			Success:   false,
			ErrorCode: "invalid_request",
			Message:   err.Error(),
		})
		return
	}

	status, resp := h.cashdesk.deposit(&req)
	c.JSON(status, resp)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		CashdeskID:  h.cashdesk.cashdeskID,
		Timestamp:   time.Now(),
		SuccessRate: h.cashdesk.successRate,
	})
}

// UpdateConfig allows changing cashdesk behavior at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate *float64 `json:"success_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.SuccessRate != nil {
		if *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
			h.cashdesk.successRate = *config.SuccessRate
			log.Info().Float64("rate", *config.SuccessRate).Msg("Updated success rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Configuration updated",
		"success_rate": h.cashdesk.successRate,
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

	router.POST("/cashdesk/deposit", handler.Deposit)
	router.PUT("/config", handler.UpdateConfig)
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 100*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 2*time.Second)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Cashdesk")

	cashdesk := NewMockCashdesk(successRate, minDelay, maxDelay)
	handler := NewHandler(cashdesk)
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

	// Graceful shutdown
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
