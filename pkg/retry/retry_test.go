package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, uint64(0), cfg.MaxRetries, "デフォルトではリトライしない")
	require.Equal(t, InitialBackoffInterval, cfg.InitialInterval)
	require.Equal(t, MaxBackoffInterval, cfg.MaxInterval)
}

func TestNewBackOffPolicy(t *testing.T) {
	bo := newBackOffPolicy(context.Background(), Config{MaxRetries: 5, InitialInterval: 10 * time.Millisecond, MaxInterval: 500 * time.Millisecond})
	require.NotNil(t, bo)
}

func TestDo(t *testing.T) {
	fastCfg := func(retries uint64) Config {
		return Config{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	}
	errUpload := errors.New("upload failed")

	tests := []struct {
		name          string
		ctx           context.Context
		cfg           Config
		failures      int
		shouldRetry   ShouldRetryFunc
		expectErr     bool
		expectedCalls int
	}{
		{
			name:          "success_first_attempt",
			ctx:           context.Background(),
			cfg:           fastCfg(0),
			expectedCalls: 1,
		},
		{
			name:          "no_retries_by_default",
			ctx:           context.Background(),
			cfg:           fastCfg(0),
			failures:      5,
			expectErr:     true,
			expectedCalls: 1,
		},
		{
			name:          "recovers_within_retries",
			ctx:           context.Background(),
			cfg:           fastCfg(3),
			failures:      2,
			expectedCalls: 3,
		},
		{
			name:          "max_retries_exceeded",
			ctx:           context.Background(),
			cfg:           fastCfg(2),
			failures:      10,
			expectErr:     true,
			expectedCalls: 3,
		},
		{
			name:          "permanent_error_stops_immediately",
			ctx:           context.Background(),
			cfg:           fastCfg(3),
			failures:      10,
			shouldRetry:   func(error) bool { return false },
			expectErr:     true,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			op := func() error {
				calls++
				if calls <= tt.failures {
					return errUpload
				}
				return nil
			}

			err := Do(tt.ctx, tt.cfg, "upload", op, tt.shouldRetry)
			require.Equal(t, tt.expectedCalls, calls)
			if tt.expectErr {
				require.Error(t, err)
				require.ErrorIs(t, err, errUpload)
				require.Contains(t, err.Error(), "uploadに失敗しました")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Config{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}, "upload", func() error {
		return errors.New("some error")
	}, Always)
	require.Error(t, err)
}
