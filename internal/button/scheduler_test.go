package button

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickLoopFiresEachPeriod(t *testing.T) {
	l := NewTickLoop(10 * time.Millisecond)
	var fast, slow []time.Time

	_, err := l.Every(10*time.Millisecond, func(now time.Time) { fast = append(fast, now) })
	require.NoError(t, err)
	_, err = l.Every(20*time.Millisecond, func(now time.Time) { slow = append(slow, now) })
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		l.Fire(t0.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	assert.Len(t, fast, 6)
	require.Len(t, slow, 3)
	assert.Equal(t, t0, slow[0])
	assert.Equal(t, t0.Add(20*time.Millisecond), slow[1])
	assert.Equal(t, t0.Add(40*time.Millisecond), slow[2])
}

func TestTickLoopToleratesJitter(t *testing.T) {
	l := NewTickLoop(10 * time.Millisecond)
	n := 0
	_, err := l.Every(10*time.Millisecond, func(time.Time) { n++ })
	require.NoError(t, err)

	l.Fire(t0.Add(3 * time.Millisecond))
	l.Fire(t0.Add(11 * time.Millisecond))
	l.Fire(t0.Add(22 * time.Millisecond))
	l.Fire(t0.Add(31 * time.Millisecond))

	assert.Equal(t, 4, n)
}

func TestTickLoopResyncsAfterStall(t *testing.T) {
	l := NewTickLoop(10 * time.Millisecond)
	n := 0
	_, err := l.Every(10*time.Millisecond, func(time.Time) { n++ })
	require.NoError(t, err)

	l.Fire(t0)
	l.Fire(t0.Add(time.Second))
	l.Fire(t0.Add(time.Second + 4*time.Millisecond))
	l.Fire(t0.Add(time.Second + 10*time.Millisecond))

	assert.Equal(t, 3, n)
}

func TestTickLoopStop(t *testing.T) {
	l := NewTickLoop(10 * time.Millisecond)
	n := 0
	timer, err := l.Every(10*time.Millisecond, func(time.Time) { n++ })
	require.NoError(t, err)

	l.Fire(t0)
	timer.Stop()
	timer.Stop()
	l.Fire(t0.Add(10 * time.Millisecond))

	assert.Equal(t, 1, n)
	assert.Equal(t, 0, l.Len())
}

func TestTickLoopStopFromCallback(t *testing.T) {
	l := NewTickLoop(10 * time.Millisecond)
	var second Timer
	calls := 0

	_, err := l.Every(10*time.Millisecond, func(time.Time) { second.Stop() })
	require.NoError(t, err)
	second, err = l.Every(10*time.Millisecond, func(time.Time) { calls++ })
	require.NoError(t, err)

	l.Fire(t0)
	assert.Equal(t, 0, calls)
}

func TestTickLoopRejectsInvalid(t *testing.T) {
	l := NewTickLoop(10 * time.Millisecond)

	_, err := l.Every(0, func(time.Time) {})
	assert.Error(t, err)
	_, err = l.Every(time.Second, nil)
	assert.Error(t, err)

	l.Close()
	_, err = l.Every(time.Second, func(time.Time) {})
	assert.ErrorIs(t, err, ErrSchedulerClosed)
}
