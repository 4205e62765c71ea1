package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_InitialPhase(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("op1", "import", 1000)

	rec, ok := tr.Get("op1")
	require.True(t, ok)
	assert.Equal(t, PhaseInitializing, rec.Phase)
	assert.Equal(t, int64(1000), rec.BytesTotal)
}

func TestUpdate_Monotonicity(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("op1", "import", 1000)

	tr.Update("op1", 100, 1, 5, 1)
	tr.Update("op1", 250, 2, 12, 2)
	tr.Update("op1", 400, 3, 20, 3)

	rec, ok := tr.Get("op1")
	require.True(t, ok)
	assert.Equal(t, int64(400), rec.BytesDone)
	assert.Equal(t, int64(3), rec.ChunksDone)
	assert.Equal(t, int64(20), rec.LinesDone)
	assert.Equal(t, int64(3), rec.ItemsDone)
}

func TestUpdate_NeverDividesByZero(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("op1", "import", 0)

	assert.NotPanics(t, func() {
		tr.Update("op1", 0, 0, 0, 0)
	})

	rec, _ := tr.Get("op1")
	assert.Equal(t, float64(0), rec.SpeedBPS)
	assert.Equal(t, time.Duration(0), rec.ETA)
}

func TestBytesDoneNeverExceedsTotalInvariantHolds(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("op1", "import", 10)
	tr.Update("op1", 10, -1, -1, -1)

	rec, _ := tr.Get("op1")
	assert.LessOrEqual(t, rec.BytesDone, rec.BytesTotal)
}

func TestSetPhase_CompleteFail(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("op1", "x", 10)
	tr.Complete("op1")

	rec, _ := tr.Get("op1")
	assert.Equal(t, PhaseCompleted, rec.Phase)

	tr.Create("op2", "y", 10)
	tr.Fail("op2")

	rec2, _ := tr.Get("op2")
	assert.Equal(t, PhaseFailed, rec2.Phase)
}

func TestAddMetadata_Merges(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("op1", "x", 10)
	tr.AddMetadata("op1", map[string]any{"a": 1})
	tr.AddMetadata("op1", map[string]any{"b": 2})

	rec, _ := tr.Get("op1")
	assert.Equal(t, 1, rec.Metadata["a"])
	assert.Equal(t, 2, rec.Metadata["b"])
}

func TestActive_ExcludesTerminalPhases(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("running", "x", 10)
	tr.Create("done", "y", 10)
	tr.Complete("done")
	tr.Create("failed", "z", 10)
	tr.Fail("failed")

	active := tr.Active()
	assert.Contains(t, active, "running")
	assert.NotContains(t, active, "done")
	assert.NotContains(t, active, "failed")
}

func TestCleanup_RemovesStaleRecords(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("stale", "x", 10)
	tr.Create("fresh", "y", 10)

	e, ok := tr.get("stale")
	require.True(t, ok)
	e.mu.Lock()
	e.rec.LastUpdated = time.Now().Add(-time.Hour)
	e.mu.Unlock()

	removed := tr.Cleanup(10 * time.Minute)
	assert.Equal(t, 1, removed)

	_, ok = tr.Get("stale")
	assert.False(t, ok)

	_, ok = tr.Get("fresh")
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Create("op1", "x", 10)
	tr.Remove("op1")

	_, ok := tr.Get("op1")
	assert.False(t, ok)
}

func TestConcurrentUpdatesAcrossOps(t *testing.T) {
	t.Parallel()

	tr := New()

	var wg sync.WaitGroup

	for i := range 20 {
		op := opName(i)
		tr.Create(op, "x", 1000)

		wg.Add(1)

		go func(op string) {
			defer wg.Done()

			for b := int64(0); b <= 1000; b += 100 {
				tr.Update(op, b, -1, -1, -1)
			}
		}(op)
	}

	wg.Wait()

	for i := range 20 {
		rec, ok := tr.Get(opName(i))
		require.True(t, ok)
		assert.Equal(t, int64(1000), rec.BytesDone)
	}
}

func opName(i int) string {
	return "op-" + string(rune('a'+i))
}
