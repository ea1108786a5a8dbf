package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/logging"
)

func TestParseCSV(t *testing.T) {
	var b strings.Builder
	b.WriteString("\ufeffVillage, Cattle ,Fodder Stock\n")
	for i := range 15 {
		fmt.Fprintf(&b, "V%d,%d,%d\n", i, i*10, i*100)
	}
	b.WriteString(",,\n")

	r, err := Parse("survey.csv", strings.NewReader(b.String()), 3)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "survey.csv", r.Filename)
	assert.Equal(t, 15, r.Rows)
	assert.Equal(t, []string{"Village", "Cattle", "Fodder Stock"}, r.Columns)
	assert.Equal(t, "Village,Cattle,Fodder Stock\nV0,0,0\nV1,10,100\nV2,20,200", r.Preview)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"District", "Cattle_Demand"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"PRAKASAM", 137387}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	r, err := Parse("dir/fodder.xlsx", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "fodder.xlsx", r.Filename)
	assert.Equal(t, 1, r.Rows)
	assert.Equal(t, []string{"District", "Cattle_Demand"}, r.Columns)
	assert.Equal(t, "District,Cattle_Demand\nPRAKASAM,137387", r.Preview)
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		reason   string
	}{
		{"empty", "a.csv", "", "empty"},
		{"header only", "a.csv", "District,Cattle\n", "no data rows"},
		{"blank rows only", "a.csv", "District,Cattle\n,\n", "no data rows"},
		{"bad quoting", "a.csv", "District,\"Cattle\nX,1", "invalid CSV"},
		{"not a workbook", "a.xlsx", "plain text", "invalid XLSX"},
		{"unsupported type", "a.pdf", "%PDF", "unsupported file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.filename, strings.NewReader(tt.content), 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedUpload))

			var ue *domain.UploadError
			require.True(t, errors.As(err, &ue))
			assert.Contains(t, ue.Reason, tt.reason)
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", "upload.json"))

	_, err := s.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoUpload)

	first := &Result{ID: "1", Filename: "a.csv", Rows: 1, Columns: []string{"A"}, Preview: "A\n1", UploadedAt: time.Now().UTC()}
	require.NoError(t, s.Save(ctx, first))
	second := &Result{ID: "2", Filename: "b.csv", Rows: 2, Columns: []string{"B"}, Preview: "B\n1\n2", UploadedAt: time.Now().UTC()}
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", got.ID)
	assert.Equal(t, second.Preview, got.Preview)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files should be cleaned up")
}

func TestNewStoreFallsBackToFile(t *testing.T) {
	cfg := config.UploadConfig{
		Store: "redis",
		Path:  filepath.Join(t.TempDir(), "upload.json"),
		Redis: config.RedisConfig{Addr: "127.0.0.1:1"},
	}
	s := NewStore(cfg, logging.Nop())
	defer s.Close()

	fs, ok := s.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, cfg.Path, fs.Path())
}
