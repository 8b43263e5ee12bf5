package factory

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/real"
	"github.com/opd-ai/openmail/testing"
	"github.com/sirupsen/logrus"
)

// Environment variables consulted by NewRequesterFactory. They use the same
// names the config package binds, so either layer may set them.
const (
	EnvSimulation = "OPENMAIL_NETWORK_SIMULATION"
	EnvTimeout    = "OPENMAIL_NETWORK_TIMEOUT"
	EnvUserAgent  = "OPENMAIL_NETWORK_USER_AGENT"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "openmail/1.0"

// RequesterFactory creates requester implementations based on configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type RequesterFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.RequesterConfig
	httpClient    *http.Client
}

// TestConfigOption is a functional option for customizing test simulation configuration.
type TestConfigOption func(*interfaces.RequesterConfig)

// NewRequesterFactory creates a new factory with default configuration and
// environment overrides applied.
func NewRequesterFactory() *RequesterFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &RequesterFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig initializes the default requester configuration:
// real HTTPS, a 30 second timeout, and responses capped at MaxMessageSize.
func createDefaultConfig() *interfaces.RequesterConfig {
	return &interfaces.RequesterConfig{
		UseSimulation:   false,
		Timeout:         30 * time.Second,
		UserAgent:       DefaultUserAgent,
		MaxResponseSize: limits.MaxMessageSize,
	}
}

// applyEnvironmentOverrides updates configuration based on OPENMAIL_*
// environment variables, keeping defaults for values that do not parse.
func applyEnvironmentOverrides(config *interfaces.RequesterConfig) {
	parseSimulationSetting(config)
	parseTimeoutSetting(config)
	if ua := os.Getenv(EnvUserAgent); ua != "" {
		config.UserAgent = ua
	}
}

func parseSimulationSetting(config *interfaces.RequesterConfig) {
	raw := os.Getenv(EnvSimulation)
	if raw == "" {
		return
	}
	useSim, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseSimulationSetting",
			"env_var":     EnvSimulation,
			"value":       raw,
			"error":       err.Error(),
			"using_value": config.UseSimulation,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	config.UseSimulation = useSim
}

// parseTimeoutSetting accepts a Go duration ("45s") or plain milliseconds.
func parseTimeoutSetting(config *interfaces.RequesterConfig) {
	raw := os.Getenv(EnvTimeout)
	if raw == "" {
		return
	}

	timeout, err := time.ParseDuration(raw)
	if err != nil {
		ms, convErr := strconv.Atoi(raw)
		if convErr != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseTimeoutSetting",
				"env_var":     EnvTimeout,
				"value":       raw,
				"error":       err.Error(),
				"using_value": config.Timeout,
			}).Warn("Failed to parse environment variable, using default")
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	if timeout < interfaces.MinTimeout || timeout > interfaces.MaxTimeout {
		logrus.WithFields(logrus.Fields{
			"function":    "parseTimeoutSetting",
			"env_var":     EnvTimeout,
			"value":       timeout,
			"min":         interfaces.MinTimeout,
			"max":         interfaces.MaxTimeout,
			"using_value": config.Timeout,
		}).Warn("Timeout out of bounds, using default")
		return
	}
	config.Timeout = timeout
}

func logConfigurationInfo(config *interfaces.RequesterConfig) {
	logrus.WithFields(logrus.Fields{
		"function":       "NewRequesterFactory",
		"use_simulation": config.UseSimulation,
		"timeout":        config.Timeout,
		"user_agent":     config.UserAgent,
	}).Info("Created requester factory with configuration")
}

// SetHTTPClient sets the client used by real requesters. Nil restores the
// default.
func (f *RequesterFactory) SetHTTPClient(client *http.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.httpClient = client
}

// CreateRequester creates a requester from the factory's configuration.
func (f *RequesterFactory) CreateRequester() (interfaces.Requester, error) {
	return f.CreateRequesterWithConfig(nil)
}

// CreateRequesterWithConfig creates a requester with custom configuration.
// A nil config uses the factory default.
func (f *RequesterFactory) CreateRequesterWithConfig(config *interfaces.RequesterConfig) (interfaces.Requester, error) {
	f.mu.RLock()
	if config == nil {
		config = f.defaultConfig
	}
	client := f.httpClient
	f.mu.RUnlock()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.UseSimulation {
		logrus.WithFields(logrus.Fields{
			"function": "CreateRequesterWithConfig",
			"type":     "simulation",
		}).Info("Creating simulated agent network")
		return testing.NewNetwork(), nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateRequesterWithConfig",
		"type":     "real",
		"timeout":  config.Timeout,
	}).Info("Creating HTTPS requester")
	return real.NewHTTPSRequester(config, client), nil
}

// WithTimeout sets a custom timeout for the test configuration.
func WithTimeout(timeout time.Duration) TestConfigOption {
	return func(c *interfaces.RequesterConfig) {
		c.Timeout = timeout
	}
}

// CreateSimulationForTesting creates a simulated network with test
// configuration applied and returns it concretely so tests can seed it.
func (f *RequesterFactory) CreateSimulationForTesting(opts ...TestConfigOption) *testing.Network {
	testConfig := &interfaces.RequesterConfig{
		UseSimulation: true,
		Timeout:       time.Second,
		UserAgent:     DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(testConfig)
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateSimulationForTesting",
		"timeout":  testConfig.Timeout,
	}).Info("Creating simulation implementation for testing")

	return testing.NewNetwork()
}

// SwitchToSimulation switches the default configuration to simulation.
func (f *RequesterFactory) SwitchToSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultConfig.UseSimulation = true
	logrus.WithFields(logrus.Fields{
		"function": "SwitchToSimulation",
	}).Info("Factory switched to simulation mode")
}

// SwitchToReal switches the default configuration to real HTTPS.
func (f *RequesterFactory) SwitchToReal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultConfig.UseSimulation = false
	logrus.WithFields(logrus.Fields{
		"function": "SwitchToReal",
	}).Info("Factory switched to real mode")
}

// GetCurrentConfig returns a copy of the current default configuration.
func (f *RequesterFactory) GetCurrentConfig() *interfaces.RequesterConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c := *f.defaultConfig
	return &c
}

// IsUsingSimulation returns true if the factory is configured for simulation.
func (f *RequesterFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig.UseSimulation
}

// UpdateConfig replaces the factory's default configuration after
// validating it.
func (f *RequesterFactory) UpdateConfig(config *interfaces.RequesterConfig) error {
	if config == nil {
		return errNilConfig
	}
	if err := config.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       "UpdateConfig",
		"old_simulation": f.defaultConfig.UseSimulation,
		"new_simulation": config.UseSimulation,
		"old_timeout":    f.defaultConfig.Timeout,
		"new_timeout":    config.Timeout,
	}).Info("Updating factory configuration")

	c := *config
	f.defaultConfig = &c
	return nil
}
