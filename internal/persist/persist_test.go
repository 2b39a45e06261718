package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mbus-hat/log2"
)

func TestPersistStat(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	root := t.TempDir()

	tbegin := time.Now()
	s1 := &Stat{}
	p1 := New("stat", s1, root, log)
	require.True(t, p1.Enabled())
	require.NoError(t, p1.Load(), "first run has nothing stored")
	assert.Equal(t, uint64(0), s1.Snapshot().Runs)

	s1.Success()
	s1.Failure("NoAckFromSlave")
	s1.Failure("NoAckFromSlave")
	s1.Delivered(true)
	s1.Delivered(false)
	require.NoError(t, p1.Store())
	_, err := os.Stat(filepath.Join(root, "stat"))
	require.NoError(t, err)

	s2 := &Stat{}
	p2 := New("stat", s2, root, log)
	require.NoError(t, p2.Load())
	snap := s2.Snapshot()
	assert.Equal(t, uint64(3), snap.Runs)
	assert.Equal(t, uint64(1), snap.Successes)
	assert.Equal(t, map[string]uint64{"NoAckFromSlave": 2}, snap.Failures)
	assert.Equal(t, uint64(1), snap.Published)
	assert.Equal(t, uint64(1), snap.Spooled)
	assert.Equal(t, s1.Snapshot().LastSuccess, snap.LastSuccess)
	// timestamps stay wall clock after reload
	assert.WithinDuration(t, tbegin, time.Unix(0, snap.LastSuccess), time.Minute)
	assert.WithinDuration(t, tbegin, time.Unix(0, snap.LastFailure), time.Minute)
}

func TestPersistDisabled(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	s := &Stat{}
	p := New("stat", s, "", log)
	assert.False(t, p.Enabled())
	s.Success()
	assert.NoError(t, p.Store())
	assert.NoError(t, p.Load())
	assert.Equal(t, uint64(1), s.Snapshot().Runs)
}

func TestStatCorrupt(t *testing.T) {
	t.Parallel()
	s := &Stat{}
	err := s.UnmarshalBinary([]byte("{"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat decode")
	assert.Zero(t, s.Snapshot().LastSuccess)
}
