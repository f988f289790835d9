// Package newrelic provides New Relic APM integration for monitoring.
package newrelic

import (
	"context"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/mithril-go/miner/internal/util"
)

// NewRelicConfig defines the APM integration.
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AppName    string `mapstructure:"app_name"`
	LicenseKey string `mapstructure:"license_key"`
}

// Agent wraps New Relic APM functionality
type Agent struct {
	cfg *NewRelicConfig
	app *newrelic.Application
	mu  sync.RWMutex
}

// NewAgent creates a new New Relic agent
func NewAgent(cfg *NewRelicConfig) *Agent {
	return &Agent{
		cfg: cfg,
	}
}

// Start initializes the New Relic agent
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Info("New Relic APM disabled")
		return nil
	}

	if a.cfg.LicenseKey == "" {
		util.Warn("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return err
	}

	// Wait for connection (up to 5 seconds)
	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.mu.Lock()
	a.app = app
	a.mu.Unlock()

	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

// Stop shuts down the New Relic agent
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("Shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

// Application returns the underlying New Relic application (for middleware)
func (a *Agent) Application() *newrelic.Application {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app
}

// IsEnabled returns true if New Relic is enabled and connected
func (a *Agent) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app != nil
}

// StartTransaction starts a new New Relic transaction
func (a *Agent) StartTransaction(name string) *newrelic.Transaction {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app == nil {
		return nil
	}
	return app.StartTransaction(name)
}

// TimeHash runs fn inside a "HashRound" transaction, recording any error it
// returns.
func (a *Agent) TimeHash(fn func() error) error {
	txn := a.StartTransaction("HashRound")
	if txn == nil {
		return fn()
	}
	defer txn.End()

	err := fn()
	if err != nil {
		txn.NoticeError(err)
	}
	return err
}

// RecordCustomEvent records a custom event
func (a *Agent) RecordCustomEvent(eventType string, params map[string]interface{}) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

// RecordCustomMetric records a custom metric
func (a *Agent) RecordCustomMetric(name string, value float64) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// NoticeError records an error
func (a *Agent) NoticeError(txn *newrelic.Transaction, err error) {
	if txn != nil && err != nil {
		txn.NoticeError(err)
	}
}

// NewContext adds transaction to context
func (a *Agent) NewContext(ctx context.Context, txn *newrelic.Transaction) context.Context {
	if txn == nil {
		return ctx
	}
	return newrelic.NewContext(ctx, txn)
}

// FromContext gets transaction from context
func (a *Agent) FromContext(ctx context.Context) *newrelic.Transaction {
	return newrelic.FromContext(ctx)
}

// RecordShareSubmission records a share submission event.
func (a *Agent) RecordShareSubmission(jobID, nonce string, difficulty uint64, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	a.RecordCustomEvent("ShareSubmission", map[string]interface{}{
		"jobId":      jobID,
		"nonce":      nonce,
		"difficulty": difficulty,
		"status":     status,
	})
}

// RecordStratumError records an error action received from the pool.
func (a *Agent) RecordStratumError(message string) {
	a.RecordCustomEvent("StratumError", map[string]interface{}{
		"message": message,
	})
}

// RecordLogin records a successful pool login.
func (a *Agent) RecordLogin(minerID string) {
	a.RecordCustomEvent("PoolLogin", map[string]interface{}{
		"minerId": minerID,
	})
}

// UpdateHashMetrics updates the hash engine's throughput metrics.
func (a *Agent) UpdateHashMetrics(hashrate float64, scratchpads int) {
	a.RecordCustomMetric("Custom/Hash/Rate", hashrate)
	a.RecordCustomMetric("Custom/Hash/Scratchpads", float64(scratchpads))
}

// UpdateShareMetrics updates rolling share-acceptance metrics.
func (a *Agent) UpdateShareMetrics(accepted, rejected uint64) {
	a.RecordCustomMetric("Custom/Shares/Accepted", float64(accepted))
	a.RecordCustomMetric("Custom/Shares/Rejected", float64(rejected))
}
