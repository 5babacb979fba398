package sensor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

func TestParseLineAccelOnly(t *testing.T) {
	s, ok, err := ParseLine("1200,0.1,-0.2,9.8")
	require.NoError(t, err)
	require.True(t, ok)

	want := motion.Sample{TimeMS: 1200, Accel: [3]float64{0.1, -0.2, 9.8}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLineFullIMU(t *testing.T) {
	s, ok, err := ParseLine("1200, 0.1, -0.2, 9.8, 1, 2, 3, 10, 20, 30")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, s.Gyro)
	require.NotNil(t, s.Mag)
	assert.Equal(t, [3]float64{1, 2, 3}, *s.Gyro)
	assert.Equal(t, [3]float64{10, 20, 30}, *s.Mag)
}

func TestParseLineSkipsCommentsAndBlanks(t *testing.T) {
	for _, line := range []string{"", "   ", "# ts,ax,ay,az"} {
		_, ok, err := ParseLine(line)
		assert.NoError(t, err, "line %q", line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParseLineRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"1200,0.1,9.8",        // too few fields
		"1200,0.1,0.2,9.8,1",  // field count between shapes
		"abc,0.1,0.2,9.8",     // bad timestamp
		"1200,0.1,spike,9.8",  // bad value
	} {
		_, _, err := ParseLine(line)
		assert.Error(t, err, "line %q", line)
	}
}

func TestReplayPlaysTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	trace := "# fall rehearsal\n" +
		"0,0,0,9.8\n" +
		"20,0,0,9.6\n" +
		"bogus line\n" +
		"40,0,0,28.0\n"
	require.NoError(t, os.WriteFile(path, []byte(trace), 0o644))

	var got []motion.Sample
	r := NewReplay(path, false, timeutil.RealClock{})
	require.NoError(t, r.Play(context.Background(), func(s motion.Sample) {
		got = append(got, s)
	}))

	require.Len(t, got, 3, "malformed lines are skipped, not fatal")
	assert.Equal(t, int64(40), got[2].TimeMS)
	assert.Equal(t, 28.0, got[2].Accel[2])
}

func TestReplayStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,0,0,9.8\n1000,0,0,9.8\n"), 0o644))

	clock := timeutil.NewMockClock(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReplay(path, true, clock)

	done := make(chan error, 1)
	go func() {
		done <- r.Play(ctx, func(motion.Sample) {})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not stop on cancel")
	}
}
