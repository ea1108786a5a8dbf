package controller

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fodder-analyzer/internal/analyzer"
	"github.com/fodder-analyzer/internal/assistant"
	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/dataset"
	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/forecast"
	"github.com/fodder-analyzer/internal/logging"
	"github.com/fodder-analyzer/internal/upload"
)

type staticSource struct{ snap *dataset.Snapshot }

func (s staticSource) Snapshot() *dataset.Snapshot { return s.snap }

// recorder is a collaborator that remembers what it was asked
type recorder struct {
	reply string
	got   []assistant.Request
}

func (r *recorder) Name() string                    { return "recorder" }
func (r *recorder) IsAvailable(context.Context) bool { return true }

func (r *recorder) Stream(_ context.Context, req assistant.Request) iter.Seq2[string, error] {
	r.got = append(r.got, req)
	return func(yield func(string, error) bool) {
		yield(r.reply, nil)
	}
}

func testSnapshot() *dataset.Snapshot {
	return dataset.NewSnapshot(
		[]domain.RegionRecord{
			domain.NewRegionRecord("PRAKASAM", 529193.34, 2427896.20),
			domain.NewRegionRecord("KADAPA", 363509.13, 1481487.20),
			domain.NewRegionRecord("ELURU", 1828093.46, 1665749.50),
			domain.NewRegionRecord("VISAKHAPATNAM", 449237.70, 191088.90),
		},
		[]domain.CropSupplyRecord{
			{Region: "ELURU", Total: 1828093.46, Crops: map[string]float64{domain.CropPaddy: 1500000}},
		},
		nil,
		nil,
	)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Assistant.Provider = "local"
	cfg.Upload.Store = "file"
	cfg.Upload.Path = filepath.Join(t.TempDir(), "upload.json")
	return cfg
}

func newTestController(t *testing.T, snap *dataset.Snapshot, collaborators ...assistant.Collaborator) *Controller {
	t.Helper()
	cfg := testConfig(t)
	c := NewWithOptions(Options{
		Config:        cfg,
		Logger:        logging.Nop(),
		Source:        staticSource{snap: snap},
		Uploads:       upload.NewFileStore(cfg.Upload.Path),
		Collaborators: collaborators,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewController(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())
	require.NotNil(t, ctrl)
	assert.NotNil(t, ctrl.cfg)
	assert.NotNil(t, ctrl.logger)
	assert.NotNil(t, ctrl.engine)
	assert.NotNil(t, ctrl.assistant)
}

func TestChatFallsBackToRules(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())

	resp, err := ctrl.Chat(context.Background(), ChatRequest{Message: "Compare Prakasam and Eluru"})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "PRAKASAM")
	assert.Contains(t, resp.Response, "ELURU")
}

func TestChatEmptyMessage(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())

	_, err := ctrl.Chat(context.Background(), ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatUsesStoredUpload(t *testing.T) {
	rec := &recorder{reply: "noted"}
	ctrl := newTestController(t, testSnapshot(), rec)
	ctx := context.Background()

	_, err := ctrl.Upload(ctx, "herd.csv", strings.NewReader("Village,Cattle\nA,10\nB,20\n"))
	require.NoError(t, err)

	resp, err := ctrl.Chat(ctx, ChatRequest{Message: "What about my herd?"})
	require.NoError(t, err)
	assert.Equal(t, "noted", resp.Response)

	require.Len(t, rec.got, 1)
	assert.Contains(t, rec.got[0].Context, "Village,Cattle")
	assert.Contains(t, rec.got[0].Prompt, "NEW USER DATA")

	// An explicit context wins over the stored preview
	_, err = ctrl.Chat(ctx, ChatRequest{Message: "And this?", Context: "Crop,Tons\nMaize,5"})
	require.NoError(t, err)
	require.Len(t, rec.got, 2)
	assert.Equal(t, "Crop,Tons\nMaize,5", rec.got[1].Context)
}

func TestAskWithoutPrimaryUsesUpload(t *testing.T) {
	ctrl := newTestController(t, dataset.NewSnapshot(nil, nil, nil, nil))
	ctx := context.Background()

	_, err := ctrl.Upload(ctx, "herd.csv", strings.NewReader("Village,Cattle\nA,10\n"))
	require.NoError(t, err)

	answer := ctrl.Ask(ctx, ChatRequest{Message: "how many cattle"})
	assert.Contains(t, answer.Text, "Cattle")
}

func TestUploadMalformedKeepsPrevious(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())
	ctx := context.Background()

	first, err := ctrl.Upload(ctx, "good.csv", strings.NewReader("A,B\n1,2\n"))
	require.NoError(t, err)
	assert.True(t, first.Success)

	_, err = ctrl.Upload(ctx, "bad.csv", strings.NewReader("A,B\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedUpload)

	latest, err := ctrl.LatestUpload(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
}

func TestUploadTooLarge(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())
	ctrl.cfg.Upload.MaxBytes = 8

	_, err := ctrl.Upload(context.Background(), "big.csv", strings.NewReader("A,B\n1,2\n3,4\n"))
	var uerr *domain.UploadError
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, uerr.Reason, "exceeds")
}

func TestData(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())

	resp := ctrl.Data(context.Background())
	assert.True(t, resp.Success)
	assert.Len(t, resp.Regions, 4)
	assert.Len(t, resp.Supply, 1)
	assert.NotNil(t, resp.Demand)
	assert.Empty(t, resp.Demand)
	assert.NotNil(t, resp.Mandals)
	assert.Equal(t, 4, resp.Totals.RegionCount)
}

func TestDataWithoutTables(t *testing.T) {
	ctrl := newTestController(t, nil)

	resp := ctrl.Data(context.Background())
	assert.False(t, resp.Success)
	assert.NotNil(t, resp.Regions)
	assert.Empty(t, resp.Regions)
}

func TestInsights(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())

	report, err := ctrl.Insights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, analyzer.Critical, report.Vulnerability)
	assert.NotEmpty(t, report.Transfers)

	_, err = newTestController(t, nil).Insights(context.Background())
	assert.ErrorIs(t, err, domain.ErrMissingDataset)
}

func TestForecast(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())
	ctx := context.Background()

	tests := []struct {
		name       string
		req        ForecastRequest
		wantRegion string
		wantMonths int
		wantErr    error
	}{
		{"statewide default", ForecastRequest{}, "Andhra Pradesh", forecast.DefaultHorizon, nil},
		{"region by name", ForecastRequest{Region: "kadapa", Months: 3}, "KADAPA", 3, nil},
		{"region by alias", ForecastRequest{Region: "Vizag", Months: 12}, "VISAKHAPATNAM", 12, nil},
		{"unknown region", ForecastRequest{Region: "Atlantis"}, "", 0, domain.ErrUnresolvedEntity},
		{"longest horizon", ForecastRequest{Months: forecast.MaxHorizon}, "Andhra Pradesh", forecast.MaxHorizon, nil},
		{"horizon too long", ForecastRequest{Months: forecast.MaxHorizon + 1}, "", 0, domain.ErrInvalidParameter},
		{"huge horizon", ForecastRequest{Months: 1 << 30}, "", 0, domain.ErrInvalidParameter},
		{"jitter too large", ForecastRequest{Jitter: 5, Seed: 1}, "", 0, domain.ErrInvalidParameter},
		{"negative jitter", ForecastRequest{Jitter: -0.1}, "", 0, domain.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ctrl.Forecast(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRegion, resp.Region)
			assert.Len(t, resp.Projection.Periods, tt.wantMonths)
		})
	}
}

func TestForecastSeededIsReproducible(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())
	req := ForecastRequest{Region: "Eluru", Jitter: 0.2, Seed: 42}

	a, err := ctrl.Forecast(context.Background(), req)
	require.NoError(t, err)
	b, err := ctrl.Forecast(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Projection, b.Projection)

	plain := forecast.Project(1828093.46, 1665749.50, forecast.DefaultHorizon)
	assert.NotEqual(t, plain.Periods, a.Projection.Periods)
}

func TestScenario(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())

	resp, err := ctrl.Scenario(context.Background(), ScenarioRequest{Region: "Visakhapatnam"})
	require.NoError(t, err)
	assert.Equal(t, forecast.DefaultDropPct, resp.Scenario.DropPct)
	assert.Equal(t, domain.Surplus, resp.Scenario.Status)

	resp, err = ctrl.Scenario(context.Background(), ScenarioRequest{Region: "Visakhapatnam", DropPct: 100})
	require.NoError(t, err)
	assert.Equal(t, domain.Deficit, resp.Scenario.Status)
}

func TestHealth(t *testing.T) {
	ctrl := newTestController(t, testSnapshot())

	h := ctrl.Health(context.Background())
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, 4, h.Dataset.Regions)
	assert.True(t, h.Dataset.Tables[dataset.TableSupply])
	assert.False(t, h.Dataset.Tables[dataset.TableDemand])
	assert.Equal(t, []string{"local/rules"}, h.Providers)
	assert.Contains(t, h.Notice, domain.ErrCollaboratorUnavailable.Error())
}

func TestHealthDegraded(t *testing.T) {
	h := newTestController(t, nil, &recorder{}).Health(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.Dataset.Loaded)
	assert.Equal(t, []string{"recorder", "local/rules"}, h.Providers)
	assert.Empty(t, h.Notice)
}

func TestAliasesFrom(t *testing.T) {
	assert.Nil(t, aliasesFrom(nil))

	aliases := aliasesFrom([]config.AliasConfig{{Token: "WG", Region: "west godavari"}})
	require.NotEmpty(t, aliases)
	assert.Equal(t, "WG", aliases[0].Token)
	assert.Equal(t, "WEST GODAVARI", aliases[0].Target)
}
