package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadingDegrees(t *testing.T) {
	tests := []struct {
		raw  uint16
		want float64
	}{
		{0, 0},
		{182, 0},
		{183, 1},
		{16384, 90},
		{32768, 180},
		{49152, 270},
		{65535, 359},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HeadingDegrees(tt.raw), "raw %d", tt.raw)
	}
}

func TestDecodeCallsign(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		want   string
		wantOK bool
	}{
		{"terminated", []byte("BAW123\x00\x00\x00"), "BAW123", true},
		{"garbage after terminator", []byte("EZY45\x00XYZ"), "EZY45", true},
		{"empty", []byte{0, 0, 0}, "", false},
		{"no terminator", []byte("ABCDEFGHIJKLMNO"), "", false},
		{"invalid utf8", []byte{0xff, 0xfe, 'A', 0}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeCallsign(tt.buf)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	snap := AircraftSnapshot{ID: 1, Callsign: PutCallsign("DLH4TK")}
	cs, ok := snap.CallsignOf()
	require.True(t, ok)
	assert.Equal(t, "DLH4TK", cs)

	long := PutCallsign("ABCDEFGHIJKLMNOPQRS")
	cs, ok = DecodeCallsign(long[:])
	require.True(t, ok)
	assert.Equal(t, "ABCDEFGHIJKLMN", cs)
}

func TestLinkError(t *testing.T) {
	assert.NoError(t, NewLinkError(CodeOK))

	err := NewLinkError(CodeNoSimConnection)
	assert.ErrorIs(t, err, ErrNoSimConnection)
	assert.True(t, Retryable(err))
	assert.Equal(t, "unable to connect to simulator", err.Error())

	err = NewLinkError(CodeTimedOut)
	assert.False(t, Retryable(err))
	assert.NotErrorIs(t, err, ErrUnknown)
	assert.Equal(t, "IPC timed out all retries", err.Error())

	err = NewLinkError(42)
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Contains(t, err.Error(), "code 42")

	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, uint32(42), le.Code)

	for code := CodeOpen; code <= CodeSize; code++ {
		assert.NotErrorIs(t, NewLinkError(code), ErrUnknown, "code %d", code)
	}
}

func TestAircraftState(t *testing.T) {
	assert.Equal(t, "initialising", AircraftInitialising.String())
	assert.Equal(t, "enroute", AircraftEnroute.String())
	assert.Equal(t, "shutting_down", AircraftShuttingDown.String())
	assert.Equal(t, "unknown", AircraftState(0).String())
	assert.Equal(t, "unknown", AircraftState(200).String())
	assert.True(t, AircraftTaxiingOut.OnGround())
	assert.False(t, AircraftEnroute.OnGround())
}

// scriptedSource fails Connect with the queued errors, then succeeds.
type scriptedSource struct {
	errs  []error
	calls int
}

func (s *scriptedSource) Connect(context.Context) (VersionInfo, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return VersionInfo{}, err
	}
	return VersionInfo{Link: "7.400", Simulator: "Prepar3D x64"}, nil
}

func (s *scriptedSource) Aircraft(context.Context, bool) ([]AircraftSnapshot, error) {
	return nil, nil
}

func (s *scriptedSource) OwnAircraft(context.Context) (OwnAircraft, error) {
	return OwnAircraft{}, nil
}

func (s *scriptedSource) Close() error { return nil }

func TestConnectWithRetry(t *testing.T) {
	fast := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	noSim := NewLinkError(CodeNoSimConnection)

	t.Run("retries until reachable", func(t *testing.T) {
		src := &scriptedSource{errs: []error{noSim, noSim, noSim}}
		info, err := ConnectWithRetry(context.Background(), src, fast)
		require.NoError(t, err)
		assert.Equal(t, "Prepar3D x64", info.Simulator)
		assert.Equal(t, 4, src.calls)
	})

	t.Run("fatal error stops at once", func(t *testing.T) {
		src := &scriptedSource{errs: []error{noSim, NewLinkError(CodeVersion)}}
		_, err := ConnectWithRetry(context.Background(), src, fast)
		require.Error(t, err)
		var le *LinkError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, CodeVersion, le.Code)
		assert.Equal(t, 2, src.calls)
	})

	t.Run("attempt limit", func(t *testing.T) {
		p := fast
		p.MaxAttempts = 2
		src := &scriptedSource{errs: []error{noSim, noSim, noSim}}
		_, err := ConnectWithRetry(context.Background(), src, p)
		assert.ErrorIs(t, err, ErrNoSimConnection)
		assert.Equal(t, 2, src.calls)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := RetryPolicy{BaseDelay: time.Hour}
		src := &scriptedSource{errs: []error{noSim}}
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := ConnectWithRetry(ctx, src, p)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3*time.Second, p.delay(1))
	assert.Equal(t, 6*time.Second, p.delay(2))
	assert.Equal(t, 12*time.Second, p.delay(3))
	assert.Equal(t, 24*time.Second, p.delay(4))
	assert.Equal(t, 30*time.Second, p.delay(5))
	assert.Equal(t, 30*time.Second, p.delay(50))
}
