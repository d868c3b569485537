package series

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReading(id string, ts time.Time, total *int64, delta int64) Reading {
	return Reading{
		Timestamp:     ts,
		PeriodKey:     PeriodKey(ts.Format("2006-01")),
		SourceID:      id,
		SourceAddress: "10.0.3.21",
		Identity:      "SN123456",
		CounterTotal:  total,
		PeriodDelta:   delta,
	}
}

// storeContract runs the behaviour every Store implementation shares.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	ts := time.Date(2025, time.May, 30, 10, 0, 0, 0, time.UTC)

	last, err := store.Last(ctx, "imp-03-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	all, err := store.All(ctx, "imp-03-1")
	require.NoError(t, err)
	assert.Empty(t, all)

	first := testReading("imp-03-1", ts, Int64(1000), 0)
	second := testReading("imp-03-1", ts.Add(48*time.Hour), Int64(1200), 200)
	// Out-of-order timestamp: append order still wins.
	third := testReading("imp-03-1", ts.Add(-time.Hour), Int64(1250), 50)
	for _, r := range []Reading{first, second, third} {
		require.NoError(t, store.Append(ctx, "imp-03-1", r))
	}
	require.NoError(t, store.Append(ctx, "imp-04-1", testReading("imp-04-1", ts, nil, 0)))

	last, err = store.Last(ctx, "imp-03-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(1250), *last.CounterTotal)
	assert.True(t, third.Timestamp.Equal(last.Timestamp))

	all, err = store.All(ctx, "imp-03-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1000), *all[0].CounterTotal)
	assert.Equal(t, int64(200), all[1].PeriodDelta)
	assert.Equal(t, PeriodKey("2025-06"), all[1].PeriodKey)
	assert.Equal(t, "SN123456", all[2].Identity)
	assert.Equal(t, "10.0.3.21", all[2].SourceAddress)

	other, err := store.Last(ctx, "imp-04-1")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Nil(t, other.CounterTotal)

	ids, err := store.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"imp-03-1", "imp-04-1"}, ids)
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, "a", Reading{CounterTotal: Int64(5)}))

	last, err := store.Last(ctx, "a")
	require.NoError(t, err)
	*last.CounterTotal = 99

	all, err := store.All(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), *all[0].CounterTotal)
}

func TestFileStoreContract(t *testing.T) {
	storeContract(t, NewFileStore(filepath.Join(t.TempDir(), "dados")))
}

func TestFileStoreWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()
	ts := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, "imp-05-1", testReading("imp-05-1", ts, Int64(10), 0)))
	require.NoError(t, store.Append(ctx, "imp-05-1", testReading("imp-05-1", ts.Add(time.Hour), Int64(15), 5)))

	raw, err := os.ReadFile(filepath.Join(dir, "imp-05-1.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.Equal(t, "2025-06-01T12:00:00Z,2025-06,imp-05-1,10.0.3.21,SN123456,10,0", lines[1])
	assert.Equal(t, "2025-06-01T13:00:00Z,2025-06,imp-05-1,10.0.3.21,SN123456,15,5", lines[2])
}

func TestFileStoreLegacyLayout(t *testing.T) {
	dir := t.TempDir()
	legacy := "collection_date,month,name,ip,serie,total_pages,pages_this_month\n" +
		"2025-05-02 08:00:00,2025-05,imp-03-1,10.0.3.21,SN123456,1000,0.0\n" +
		"2025-05-20 08:00:00,2025-05,imp-03-1,10.0.3.21,SN123456,1400.0,400.0"
	path := filepath.Join(dir, "imp-03-1.csv")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	store := NewFileStore(dir)
	ctx := context.Background()

	last, err := store.Last(ctx, "imp-03-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(1400), *last.CounterTotal)
	assert.Equal(t, int64(400), last.PeriodDelta)
	assert.Equal(t, PeriodKey("2025-05"), last.PeriodKey)

	ts := time.Date(2025, time.June, 3, 9, 15, 0, 0, time.Local)
	require.NoError(t, store.Append(ctx, "imp-03-1", testReading("imp-03-1", ts, Int64(1500), 100)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "2025-06-03 09:15:00,2025-06,imp-03-1,10.0.3.21,SN123456,1500,100", lines[3])

	all, err := store.All(ctx, "imp-03-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1500), *all[2].CounterTotal)
}

func TestFileStoreMissingCounterCells(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join(Columns, ",") + "\n" +
		"2025-05-02T08:00:00Z,2025-05,imp-07-1,,,,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "imp-07-1.csv"), []byte(content), 0o644))

	last, err := NewFileStore(dir).Last(context.Background(), "imp-07-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Nil(t, last.CounterTotal)
	assert.Equal(t, int64(0), last.PeriodDelta)
}

func TestFileStoreRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	err := store.Append(ctx, "../escape", Reading{})
	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "append", storeErr.Op)
	assert.ErrorIs(t, err, ErrInvalidSourceID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("a,b,c\n1,2,3\n"), 0o644))
	_, err = store.All(ctx, "broken")
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Append(cancelled, "imp-03-1", Reading{}), context.Canceled)
}

func TestValidateSourceID(t *testing.T) {
	for _, id := range []string{"imp-03-1", "lab.printer", "IMP_14"} {
		assert.NoError(t, ValidateSourceID(id), id)
	}
	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "../etc"} {
		assert.ErrorIs(t, ValidateSourceID(id), ErrInvalidSourceID, id)
	}
}

func TestFileStoreSourcesOnMissingDir(t *testing.T) {
	ids, err := NewFileStore(filepath.Join(t.TempDir(), "nope")).Sources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStoreConcurrentAppends(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := testReading("imp-08-1", ts.Add(time.Duration(i)*time.Minute), Int64(int64(i)), 0)
			assert.NoError(t, store.Append(ctx, "imp-08-1", r))
		}(i)
	}
	wg.Wait()

	all, err := store.All(ctx, "imp-08-1")
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
