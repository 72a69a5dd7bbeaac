// Package vtscan submits extracted firmware payloads to VirusTotal so a
// flashing workflow can check what it is about to trust. It wraps the
// official vt-go client with rate limiting and retries sized for the
// free API tier.
package vtscan

import (
	"fmt"
	"sync"
	"time"

	vt "github.com/VirusTotal/vt-go"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/logger"
)

// Default settings for the free API tier.
const (
	DefaultRateLimitPerMinute = 4
	DefaultRetryCount         = 3
	DefaultRetryDelay         = 5 * time.Second
)

// ClientConfig holds configuration for the VirusTotal client.
type ClientConfig struct {
	APIKey          string
	RateLimitPerMin int
	RetryCount      int
	RetryDelay      time.Duration
}

// Client is a rate-limited wrapper around the VirusTotal API client.
type Client struct {
	vtClient     *vt.Client
	config       ClientConfig
	lastRequest  time.Time
	requestCount int
	mutex        sync.Mutex
}

var (
	globalClient *Client
	clientMutex  sync.Mutex
)

// DefaultClientConfig returns the free-tier defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RateLimitPerMin: DefaultRateLimitPerMinute,
		RetryCount:      DefaultRetryCount,
		RetryDelay:      DefaultRetryDelay,
	}
}

// Initialize creates or returns the global client instance.
func Initialize(apiKey string, options ...func(*ClientConfig)) (*Client, error) {
	clientMutex.Lock()
	defer clientMutex.Unlock()

	if globalClient != nil {
		return globalClient, nil
	}

	if apiKey == "" {
		return nil, ierrors.ErrAPIKeyMissing
	}

	config := DefaultClientConfig()
	config.APIKey = apiKey
	for _, option := range options {
		option(&config)
	}

	globalClient = &Client{
		vtClient:    vt.NewClient(apiKey),
		config:      config,
		lastRequest: time.Now().Add(-time.Minute),
	}

	logger.LogInfo("VirusTotal client initialized", map[string]interface{}{
		"rate_limit": config.RateLimitPerMin,
		"retries":    config.RetryCount,
	})

	return globalClient, nil
}

// GetClient returns the initialized global client instance.
func GetClient() (*Client, error) {
	clientMutex.Lock()
	defer clientMutex.Unlock()

	if globalClient == nil {
		return nil, fmt.Errorf("%w: VirusTotal client not initialized", ierrors.ErrInvalidArgument)
	}
	return globalClient, nil
}

// WithRateLimit sets the rate limit for API requests.
func WithRateLimit(requestsPerMinute int) func(*ClientConfig) {
	return func(c *ClientConfig) {
		if requestsPerMinute > 0 {
			c.RateLimitPerMin = requestsPerMinute
		}
	}
}

// WithRetrySettings configures retry behavior.
func WithRetrySettings(count int, delay time.Duration) func(*ClientConfig) {
	return func(c *ClientConfig) {
		if count >= 0 {
			c.RetryCount = count
		}
		if delay > 0 {
			c.RetryDelay = delay
		}
	}
}

// checkRateLimit returns how long to wait before the next request may
// be issued.
func (c *Client) checkRateLimit() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(c.lastRequest)

	if elapsed >= time.Minute {
		c.requestCount = 0
		c.lastRequest = now
		return 0
	}

	if c.requestCount >= c.config.RateLimitPerMin {
		return time.Minute - elapsed
	}

	c.requestCount++
	c.lastRequest = now
	return 0
}

// executeWithRetry runs fn up to RetryCount+1 times, pausing for the
// rate limiter between attempts.
func (c *Client) executeWithRetry(operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if waitTime := c.checkRateLimit(); waitTime > 0 {
			logger.LogInfo("rate limit reached, throttling", map[string]interface{}{
				"wait": waitTime.String(),
			})
			time.Sleep(waitTime)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		logger.LogWarn("VirusTotal request failed", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt + 1,
			"error":     lastErr.Error(),
		})

		if attempt < c.config.RetryCount {
			time.Sleep(c.config.RetryDelay)
		}
	}

	return fmt.Errorf("%w: %s: %v", ierrors.ErrScanFailed, operation, lastErr)
}
