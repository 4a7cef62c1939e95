package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeRecord struct {
	op     string
	result Result
}

func newRecordingProber(level Level) (*Prober, *[]probeRecord) {
	var records []probeRecord
	p := NewProber(level, WithObserver(func(op string, r Result) {
		records = append(records, probeRecord{op, r})
	}))
	return p, &records
}

func TestProbe_BelowLevelDoesNotInvoke(t *testing.T) {
	p, records := newRecordingProber(LevelSubscriptions)

	called := false
	v, ok := Probe(context.Background(), p, "available", LevelEmbedded, func(context.Context) (int, error) {
		called = true
		return 42, nil
	})

	assert.False(t, ok)
	assert.Zero(t, v)
	assert.False(t, called, "gated probe must not invoke the operation")
	require.Len(t, *records, 1)
	assert.Equal(t, ResultGated, (*records)[0].result)
}

func TestProbe_Success(t *testing.T) {
	p, records := newRecordingProber(LevelPreferredData)

	v, ok := Probe(context.Background(), p, "all", LevelSubscriptions, func(context.Context) ([]int, error) {
		return []int{1, 2}, nil
	})

	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, v)
	assert.Equal(t, []probeRecord{{"all", ResultOK}}, *records)
}

func TestProbe_ErrorsDegrade(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Result
	}{
		{"unsupported", ErrUnsupported, ResultUnsupported},
		{"wrapped unsupported", errors.Join(errors.New("rpc"), ErrUnsupported), ResultUnsupported},
		{"permission", errors.New("permission denied"), ResultFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, records := newRecordingProber(LevelSwitching)
			v, ok := Probe(context.Background(), p, "accessible", LevelSwitching, func(context.Context) (string, error) {
				return "partial", tt.err
			})
			assert.False(t, ok)
			assert.Empty(t, v, "failed probe returns the zero value even if the host returned data")
			require.Len(t, *records, 1)
			assert.Equal(t, tt.want, (*records)[0].result)
		})
	}
}

func TestProbe_PanicRecovered(t *testing.T) {
	p, records := newRecordingProber(LevelSwitching)

	assert.NotPanics(t, func() {
		_, ok := Probe(context.Background(), p, "switch", LevelSwitching, func(context.Context) (bool, error) {
			var m map[string]int
			m["boom"] = 1
			return true, nil
		})
		assert.False(t, ok)
	})
	assert.Equal(t, []probeRecord{{"switch", ResultFailed}}, *records)
}

func TestProber_Allows(t *testing.T) {
	p := NewProber(LevelEmbedded)
	assert.True(t, p.Allows(LevelSubscriptions))
	assert.True(t, p.Allows(LevelEmbedded))
	assert.False(t, p.Allows(LevelSwitching))
	assert.Equal(t, LevelEmbedded, p.Level())
}

func TestInvoke_Classification(t *testing.T) {
	ctx := context.Background()
	p := NewProber(LevelEmbedded)

	err := p.Invoke(ctx, "switch-to", LevelSwitching, func(context.Context) error {
		t.Fatal("gated command must not run")
		return nil
	})
	require.ErrorIs(t, err, ErrGated)
	assert.True(t, Unavailable(err))
	assert.Contains(t, err.Error(), "needs switching")

	err = p.Invoke(ctx, "set-enabled", LevelEmbedded, func(context.Context) error {
		return ErrUnsupported
	})
	assert.True(t, Unavailable(err))

	hostErr := errors.New("radio busy")
	err = p.Invoke(ctx, "set-enabled", LevelEmbedded, func(context.Context) error {
		return hostErr
	})
	require.ErrorIs(t, err, hostErr)
	assert.False(t, Unavailable(err))

	err = p.Invoke(ctx, "set-enabled", LevelEmbedded, func(context.Context) error {
		panic("nil handle")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: nil handle")
	assert.False(t, Unavailable(err))

	assert.NoError(t, p.Invoke(ctx, "set-enabled", LevelEmbedded, func(context.Context) error { return nil }))
}
