package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries は 0 で、操作は1回だけ実行されます。
	DefaultMaxRetries = 0

	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// Config はリトライ動作の設定です。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig はデフォルト設定 (リトライなし) を返します。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// Always は全てのエラーをリトライ対象とする ShouldRetryFunc です。
func Always(error) bool { return true }

func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do は指数バックオフで操作を実行します。
// 最終的なエラーは、操作が返した元のエラーを %w でラップして返します。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	if shouldRetryFn == nil {
		shouldRetryFn = Always
	}

	attempt := 0
	var lastErr error
	retryableOp := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetryFn(err) {
			return backoff.Permanent(err)
		}
		if uint64(attempt) <= cfg.MaxRetries {
			slog.Warn("一時的なエラーが発生、リトライします", "operation", operationName, "attempt", attempt, "error", err)
		}
		return err
	}

	err := backoff.Retry(retryableOp, newBackOffPolicy(ctx, cfg))
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, errors.Join(ctxErr, lastErr))
	}
	if lastErr != nil {
		return fmt.Errorf("%sに失敗しました (試行 %d 回): %w", operationName, attempt, lastErr)
	}
	return fmt.Errorf("%sに失敗しました: %w", operationName, err)
}
