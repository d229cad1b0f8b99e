package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotAt(t time.Time) FusedSnapshot {
	return FusedSnapshot{ReferenceTime: t, SyncStatus: SyncSynced}
}

func TestFusionBuffer_PushAndLatestSnapshot(t *testing.T) {
	buf := NewFusionBuffer(3, 2)
	base := time.Now().UTC()

	buf.Push(snapshotAt(base))
	buf.Push(snapshotAt(base.Add(time.Second)))

	latest, ok := buf.LatestSnapshot()
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Second), latest.ReferenceTime)
}

func TestFusionBuffer_EvictionFeedsArchival(t *testing.T) {
	buf := NewFusionBuffer(2, 5)
	base := time.Now().UTC()

	for i := 0; i < 4; i++ {
		buf.Push(snapshotAt(base.Add(time.Duration(i) * time.Second)))
	}

	active := buf.Latest(0)
	require.Len(t, active, 2)
	assert.Equal(t, base.Add(2*time.Second), active[0].ReferenceTime)
	assert.Equal(t, base.Add(3*time.Second), active[1].ReferenceTime)

	archived := buf.Range(base, base.Add(1*time.Second))
	assert.Len(t, archived, 2)
}

func TestFusionBuffer_LatestK(t *testing.T) {
	buf := NewFusionBuffer(5, 2)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		buf.Push(snapshotAt(base.Add(time.Duration(i) * time.Second)))
	}

	last2 := buf.Latest(2)
	require.Len(t, last2, 2)
	assert.Equal(t, base.Add(3*time.Second), last2[0].ReferenceTime)
	assert.Equal(t, base.Add(4*time.Second), last2[1].ReferenceTime)
}

func TestFusionBuffer_ByIndex(t *testing.T) {
	buf := NewFusionBuffer(3, 2)
	base := time.Now().UTC()
	buf.Push(snapshotAt(base))
	buf.Push(snapshotAt(base.Add(time.Second)))

	s, ok := buf.ByIndex(0)
	require.True(t, ok)
	assert.Equal(t, base, s.ReferenceTime)

	_, ok = buf.ByIndex(99)
	assert.False(t, ok)
}

func TestFusionBuffer_ClearArchival(t *testing.T) {
	buf := NewFusionBuffer(1, 5)
	base := time.Now().UTC()
	buf.Push(snapshotAt(base))
	buf.Push(snapshotAt(base.Add(time.Second)))

	buf.ClearArchival()
	remaining := buf.Range(base.Add(-time.Hour), base.Add(time.Hour*24))
	require.Len(t, remaining, 1)
	assert.Equal(t, base.Add(time.Second), remaining[0].ReferenceTime)
}
