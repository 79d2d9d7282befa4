package artifact

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testDate = time.Date(2019, time.July, 14, 0, 0, 0, 0, time.UTC)

func testGrid(t *testing.T) *domain.Grid {
	t.Helper()
	g, err := domain.NewGrid([]float64{50, 49, 48}, []float64{0, 1, 2, 3}, false)
	require.NoError(t, err)
	return g
}

func testArtifact(t *testing.T) domain.DayArtifact {
	t.Helper()
	mask := domain.NewSlice(3, 4, math.NaN())
	for _, c := range [][2]int{{0, 0}, {0, 1}, {2, 3}} {
		mask.Set(c[0], c[1], 1)
	}
	set := domain.NewClusterSet()
	require.NoError(t, set.Add(&domain.Cluster{
		ID: 1, Cells: []domain.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}},
		AreaKm2: 15000, Intensity: 2.5, MaxAnomaly: 3, CentroidLat: 50, CentroidLon: 0.5,
	}))
	require.NoError(t, set.Add(&domain.Cluster{
		ID: 2, Cells: []domain.Cell{{Row: 2, Col: 3}},
		AreaKm2: 8000, Intensity: math.NaN(), MaxAnomaly: math.NaN(), CentroidLat: 48, CentroidLon: 3,
	}))
	return domain.DayArtifact{Date: testDate, Mask: mask, Clusters: set}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(filepath.Join(t.TempDir(), "ERA5", "global"), discardLogger())
	want := testArtifact(t)

	require.NoError(t, store.Save(ctx, testGrid(t), want))

	for _, prefix := range []string{maskPrefix, dictionaryPrefix, countPrefix} {
		assert.FileExists(t, filepath.Join(store.Dir(), prefix+"20190714.json"))
	}

	got, err := store.Load(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, testDate, got.Date)
	assert.Equal(t, 2, got.Count())

	opts := cmp.Options{cmpopts.EquateNaNs()}
	if diff := cmp.Diff(want.Clusters.Clusters(), got.Clusters.Clusters(), opts); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Mask, got.Mask, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("mask mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveEmptyDay(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir(), discardLogger())
	empty := domain.DayArtifact{Date: testDate, Mask: domain.NewSlice(3, 4, math.NaN()), Clusters: domain.NewClusterSet()}

	require.NoError(t, store.Save(ctx, testGrid(t), empty))

	got, err := store.Load(ctx, testDate)
	require.NoError(t, err)
	assert.Zero(t, got.Count())
	assert.Zero(t, got.Mask.Count())
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir(), discardLogger())
	_, err := store.Load(context.Background(), testDate)
	assert.ErrorIs(t, err, domain.ErrMissingArtifact)
}

func TestStore_LoadPartial(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir(), discardLogger())
	require.NoError(t, store.Save(ctx, testGrid(t), testArtifact(t)))
	require.NoError(t, os.Remove(filepath.Join(store.Dir(), countPrefix+"20190714.json")))

	_, err := store.Load(ctx, testDate)
	assert.ErrorIs(t, err, domain.ErrPartialArtifact)
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		content string
	}{
		{"unparseable mask", maskPrefix, `[[1, nul`},
		{"count disagrees", countPrefix, `{"count": 5}`},
		{"mask shape", maskPrefix, `[[1, 1], [null, null]]`},
		{"cell count", dictionaryPrefix, `[{"id":1,"cell_count":3,"cells":[[0,0,50,0],[0,1,50,1]]},{"id":2,"cell_count":1,"cells":[[2,3,48,3]]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(t.TempDir(), discardLogger())
			require.NoError(t, store.Save(ctx, testGrid(t), testArtifact(t)))
			require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), tt.prefix+"20190714.json"), []byte(tt.content), 0o644))

			_, err := store.Load(ctx, testDate)
			assert.ErrorIs(t, err, domain.ErrCorruptArtifact)
		})
	}
}

func TestStore_SaveRejectsInconsistentArtifact(t *testing.T) {
	a := testArtifact(t)
	a.Mask.Set(1, 1, 1)

	err := NewStore(t.TempDir(), discardLogger()).Save(context.Background(), testGrid(t), a)
	assert.ErrorIs(t, err, domain.ErrCorruptArtifact)
}

func TestStore_Dates(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir(), discardLogger())
	g := testGrid(t)
	for _, d := range []time.Time{testDate.AddDate(0, 0, 2), testDate, testDate.AddDate(1, 0, 0)} {
		a := testArtifact(t)
		a.Date = d
		require.NoError(t, store.Save(ctx, g, a))
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "heatwave-dictionary_notadate.json"), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "heatwave-events.json"), []byte("[]"), 0o644))

	dates, err := store.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{testDate, testDate.AddDate(0, 0, 2), testDate.AddDate(1, 0, 0)}, dates)
}

func TestStore_DatesMissingDir(t *testing.T) {
	dates, err := NewStore(filepath.Join(t.TempDir(), "absent"), discardLogger()).Dates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dates)
}
