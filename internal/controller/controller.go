// Package controller provides programmatic access to the fodder analyzer.
// The web server, the Lambda handler and the CLI all go through it, so the
// same request and response types back every surface.
package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"strings"
	"time"

	"github.com/fodder-analyzer/internal/analyzer"
	"github.com/fodder-analyzer/internal/assistant"
	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/dataset"
	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/engine"
	"github.com/fodder-analyzer/internal/forecast"
	"github.com/fodder-analyzer/internal/logging"
	"github.com/fodder-analyzer/internal/resolver"
	"github.com/fodder-analyzer/internal/upload"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// ErrEmptyMessage is returned for a chat request without a question
var ErrEmptyMessage = errors.New("message is required")

// Controller wires the dataset, the chat engine, the collaborators and the
// upload store together.
type Controller struct {
	cfg       *config.Config
	logger    *logging.Logger
	source    engine.Source
	engine    *engine.Engine
	assistant *assistant.Manager
	uploads   upload.Store
}

// Options overrides the components New builds from configuration
type Options struct {
	Config        *config.Config
	Logger        *logging.Logger
	Source        engine.Source
	Uploads       upload.Store
	Collaborators []assistant.Collaborator
}

// New creates a Controller from the global configuration
func New() *Controller {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Controller, building every component that opts
// leaves unset.
func NewWithOptions(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Get()
	}

	logger := opts.Logger
	if logger == nil {
		l, err := logging.New(logging.Config{
			Level:       logging.ParseLevel(cfg.Logging.Level),
			LogDir:      cfg.Logging.LogDir,
			EnableFile:  cfg.Logging.EnableFile,
			EnableJSON:  cfg.Logging.EnableJSON,
			EnableColor: cfg.Logging.EnableColor,
			Component:   "controller",
			Version:     Version,
		})
		if err != nil || l == nil {
			l = logging.GetDefault()
		}
		logger = l
	}

	source := opts.Source
	if source == nil {
		source = dataset.NewStore(dataset.PathsFrom(cfg.Data), cfg.Data.CacheTTL, cfg.Data.CleanupInterval, logger)
	}

	eng := engine.New(source, engine.Options{
		StateName: cfg.Engine.StateName,
		Aliases:   aliasesFrom(cfg.Engine.Aliases),
		Logger:    logger,
	})

	uploads := opts.Uploads
	if uploads == nil {
		uploads = upload.NewStore(cfg.Upload, logger)
	}

	return &Controller{
		cfg:       cfg,
		logger:    logger,
		source:    source,
		engine:    eng,
		assistant: assistant.NewManager(cfg.Assistant, source, eng, logger, opts.Collaborators...),
		uploads:   uploads,
	}
}

// aliasesFrom puts configured aliases ahead of the built-in table
func aliasesFrom(extra []config.AliasConfig) []resolver.Alias {
	if len(extra) == 0 {
		return nil
	}
	aliases := make([]resolver.Alias, 0, len(extra)+len(resolver.DefaultAliases))
	for _, a := range extra {
		aliases = append(aliases, resolver.Alias{Token: a.Token, Target: strings.ToUpper(a.Region)})
	}
	return append(aliases, resolver.DefaultAliases...)
}

// Close releases the upload store
func (c *Controller) Close() error {
	return c.uploads.Close()
}

// Config returns the configuration the controller was built with
func (c *Controller) Config() *config.Config {
	return c.cfg
}

// ChatRequest is a chat question with optional pasted context
type ChatRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// ChatResponse carries the rendered answer
type ChatResponse struct {
	Response string `json:"response"`
}

// Chat answers a question, preferring a generative collaborator and
// falling back to the rule engine.
func (c *Controller) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var b strings.Builder
	for chunk, err := range c.ChatStream(ctx, req) {
		if err != nil {
			return nil, err
		}
		b.WriteString(chunk)
	}
	return &ChatResponse{Response: b.String()}, nil
}

// ChatStream answers a question chunk by chunk. The only error it yields
// is ErrEmptyMessage.
func (c *Controller) ChatStream(ctx context.Context, req ChatRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		question := strings.TrimSpace(req.Message)
		if question == "" {
			yield("", ErrEmptyMessage)
			return
		}
		custom := c.customContext(ctx, req.Context)
		c.logger.Info("chat: %q (context %d bytes)", question, len(custom))

		for chunk, err := range c.assistant.Stream(ctx, question, custom) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// Ask answers with the rule engine only
func (c *Controller) Ask(ctx context.Context, req ChatRequest) engine.Answer {
	return c.engine.Ask(strings.TrimSpace(req.Message), c.customContext(ctx, req.Context))
}

// customContext returns the request context, or the latest stored upload
// preview when the request carries none.
func (c *Controller) customContext(ctx context.Context, explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	latest, err := c.uploads.Latest(ctx)
	if err != nil {
		if !errors.Is(err, upload.ErrNoUpload) {
			c.logger.Warn("reading stored upload: %v", err)
		}
		return ""
	}
	return latest.Preview
}

// DataResponse is the dashboard payload. Lists are empty, never null,
// when a table is missing.
type DataResponse struct {
	Success  bool                        `json:"success"`
	Regions  []domain.RegionRecord       `json:"regions"`
	Supply   []domain.CropSupplyRecord   `json:"supply"`
	Demand   []domain.AnimalDemandRecord `json:"demand"`
	Mandals  []domain.MandalRecord       `json:"mandals"`
	Totals   domain.Totals               `json:"totals"`
	Errors   map[string]string           `json:"errors,omitempty"`
	LoadedAt string                      `json:"loadedAt"`
}

// Data returns every loaded table
func (c *Controller) Data(context.Context) *DataResponse {
	snap := c.source.Snapshot()
	resp := &DataResponse{
		Success: snap.HasPrimary(),
		Regions: []domain.RegionRecord{},
		Supply:  []domain.CropSupplyRecord{},
		Demand:  []domain.AnimalDemandRecord{},
		Mandals: []domain.MandalRecord{},
	}
	if snap == nil {
		return resp
	}
	resp.Regions = append(resp.Regions, snap.Regions...)
	resp.Supply = append(resp.Supply, snap.Supply...)
	resp.Demand = append(resp.Demand, snap.Demand...)
	resp.Mandals = append(resp.Mandals, snap.Mandals...)
	resp.Totals = snap.Totals()
	resp.LoadedAt = snap.LoadedAt.Format(time.RFC3339)
	if len(snap.Errors) > 0 {
		resp.Errors = make(map[string]string, len(snap.Errors))
		for table, err := range snap.Errors {
			resp.Errors[table] = err.Error()
		}
	}
	return resp
}

// Insights returns the governance report for the gap table
func (c *Controller) Insights(context.Context) (*analyzer.Report, error) {
	snap := c.source.Snapshot()
	if !snap.HasPrimary() {
		return nil, fmt.Errorf("insights: %w", domain.ErrMissingDataset)
	}
	return analyzer.Analyze(snap.Regions), nil
}

// RegionInsights returns every region with its severity and recommendation
func (c *Controller) RegionInsights(context.Context) ([]analyzer.RegionInsight, error) {
	snap := c.source.Snapshot()
	if !snap.HasPrimary() {
		return nil, fmt.Errorf("regions: %w", domain.ErrMissingDataset)
	}
	return analyzer.RegionInsights(snap.Regions), nil
}

// ForecastRequest selects the scope and noise of a projection. An empty
// Region projects statewide totals.
type ForecastRequest struct {
	Region string  `json:"region,omitempty"`
	Months int     `json:"months,omitempty"`
	Jitter float64 `json:"jitter,omitempty"`
	Seed   uint64  `json:"seed,omitempty"`
}

// ForecastResponse is a projection for one scope
type ForecastResponse struct {
	Success    bool                `json:"success"`
	Region     string              `json:"region"`
	Projection forecast.Projection `json:"projection"`
}

// Forecast projects stock month by month
func (c *Controller) Forecast(_ context.Context, req ForecastRequest) (*ForecastResponse, error) {
	region, supply, demand, err := c.scope(req.Region)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	months := req.Months
	if months <= 0 {
		months = forecast.DefaultHorizon
	}
	if months > forecast.MaxHorizon {
		return nil, fmt.Errorf("forecast: months must be at most %d: %w", forecast.MaxHorizon, domain.ErrInvalidParameter)
	}
	if math.IsNaN(req.Jitter) || req.Jitter < 0 || req.Jitter > forecast.MaxJitter {
		return nil, fmt.Errorf("forecast: jitter must be between 0 and %g: %w", forecast.MaxJitter, domain.ErrInvalidParameter)
	}
	sim := forecast.NewSeededSimulator(req.Jitter, req.Seed)
	return &ForecastResponse{
		Success:    true,
		Region:     region,
		Projection: sim.Project(supply, demand, months),
	}, nil
}

// ScenarioRequest describes a supply shock. A zero DropPct uses the default.
type ScenarioRequest struct {
	Region  string `json:"region,omitempty"`
	DropPct int    `json:"dropPct,omitempty"`
}

// ScenarioResponse is the outcome of a supply shock
type ScenarioResponse struct {
	Success  bool              `json:"success"`
	Region   string            `json:"region"`
	Scenario forecast.Scenario `json:"scenario"`
}

// Scenario stress-tests supply against unchanged demand
func (c *Controller) Scenario(_ context.Context, req ScenarioRequest) (*ScenarioResponse, error) {
	region, supply, demand, err := c.scope(req.Region)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	pct := req.DropPct
	if pct == 0 {
		pct = forecast.DefaultDropPct
	}
	return &ScenarioResponse{
		Success:  true,
		Region:   region,
		Scenario: forecast.StressTest(supply, demand, pct),
	}, nil
}

// scope resolves a region name, or the state when name is empty
func (c *Controller) scope(name string) (string, float64, float64, error) {
	snap := c.source.Snapshot()
	if !snap.HasPrimary() {
		return "", 0, 0, domain.ErrMissingDataset
	}
	if strings.TrimSpace(name) == "" {
		t := snap.Totals()
		return c.engine.StateName(), t.Supply, t.Demand, nil
	}
	match, ok := c.engine.Resolver().Resolve(name, snap.RegionNames())
	if !ok {
		return "", 0, 0, fmt.Errorf("%q: %w", name, domain.ErrUnresolvedEntity)
	}
	rec, _ := snap.Region(match)
	return rec.Name, rec.TotalSupplyTons, rec.TotalDemandTons, nil
}

// UploadResponse reports a stored upload
type UploadResponse struct {
	Success bool `json:"success"`
	*upload.Result
}

// Upload parses a CSV or XLSX file and stores its preview for later chat
// questions. A malformed file leaves the stored preview untouched.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	if limit := c.cfg.Upload.MaxBytes; limit > 0 {
		data, err := io.ReadAll(io.LimitReader(r, limit+1))
		if err != nil {
			return nil, fmt.Errorf("reading upload: %w", err)
		}
		if int64(len(data)) > limit {
			return nil, domain.NewUploadError(filename, fmt.Sprintf("file exceeds %d bytes", limit))
		}
		r = bytes.NewReader(data)
	}
	result, err := upload.Parse(filename, r, c.cfg.Upload.PreviewRows)
	if err != nil {
		c.logger.Warn("upload %s rejected: %v", filename, err)
		return nil, err
	}
	if err := c.uploads.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}
	c.logger.WithFields(logging.Fields{
		"id":      result.ID,
		"rows":    result.Rows,
		"columns": len(result.Columns),
	}).Info("stored upload %s", result.Filename)
	return &UploadResponse{Success: true, Result: result}, nil
}

// LatestUpload returns the stored upload, or upload.ErrNoUpload
func (c *Controller) LatestUpload(ctx context.Context) (*upload.Result, error) {
	return c.uploads.Latest(ctx)
}

// DatasetHealth describes the loaded tables
type DatasetHealth struct {
	Loaded   bool              `json:"loaded"`
	Regions  int               `json:"regions"`
	Tables   map[string]bool   `json:"tables"`
	Errors   map[string]string `json:"errors,omitempty"`
	Stats    *dataset.Stats    `json:"stats,omitempty"`
	LoadedAt string            `json:"loadedAt,omitempty"`
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Timestamp     string                 `json:"timestamp"`
	Dataset       DatasetHealth          `json:"dataset"`
	Providers     []string               `json:"providers"`
	Collaborators map[string]interface{} `json:"collaborators"`
	Notice        string                 `json:"notice,omitempty"`
}

// Health reports dataset and collaborator status. The status is degraded
// when the gap table is missing.
func (c *Controller) Health(ctx context.Context) *HealthResponse {
	snap := c.source.Snapshot()
	ds := DatasetHealth{
		Loaded:  snap.HasPrimary(),
		Regions: len(snap.RegionNames()),
		Tables: map[string]bool{
			dataset.TableGap:    snap.HasPrimary(),
			dataset.TableSupply: snap.HasSupply(),
			dataset.TableDemand: snap.HasDemand(),
			dataset.TableMandal: snap.HasMandals(),
		},
	}
	if snap != nil {
		ds.LoadedAt = snap.LoadedAt.Format(time.RFC3339)
		if len(snap.Errors) > 0 {
			ds.Errors = make(map[string]string, len(snap.Errors))
			for table, err := range snap.Errors {
				ds.Errors[table] = err.Error()
			}
		}
	}
	if store, ok := c.source.(*dataset.Store); ok {
		stats := store.GetStats()
		ds.Stats = &stats
	}

	resp := &HealthResponse{
		Status:        "healthy",
		Version:       Version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Dataset:       ds,
		Providers:     c.assistant.GetAvailableProviders(ctx),
		Collaborators: c.assistant.GetStatus(ctx),
	}
	if !ds.Loaded {
		resp.Status = "degraded"
	}
	if len(resp.Providers) == 1 {
		resp.Notice = domain.ErrCollaboratorUnavailable.Error() + ", answering from rules"
	}
	return resp
}

// RefreshData drops the cached snapshot so the next request rereads the
// tables. It reports how many regions the reloaded gap table holds.
func (c *Controller) RefreshData() int {
	if store, ok := c.source.(*dataset.Store); ok {
		store.Invalidate()
	}
	return len(c.source.Snapshot().RegionNames())
}
