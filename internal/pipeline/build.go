package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-snb-rates/pkg/client"
	"github.com/shouni/go-snb-rates/pkg/config"
	"github.com/shouni/go-snb-rates/pkg/extract"
	"github.com/shouni/go-snb-rates/pkg/publish"
	"github.com/shouni/go-snb-rates/pkg/retry"
)

// FromConfig は設定から依存関係を組み立て、Pipeline と実行オプションを返します。
// upload が false の場合はオブジェクトストレージのクライアントを生成しません。
func FromConfig(ctx context.Context, cfg *config.Config, runID string, upload bool, logger *slog.Logger) (*Pipeline, Options, error) {
	// 1. 設定の検証
	validate := cfg.Validate
	if upload {
		validate = cfg.ValidateUpload
	}
	if err := validate(); err != nil {
		return nil, Options{}, fmt.Errorf("設定が不正です: %w", err)
	}

	pairing, err := extract.ParsePairing(cfg.Source.Pairing)
	if err != nil {
		return nil, Options{}, err
	}

	// 2. Fetcher / Extractor の初期化 (取得はリトライしない)
	fetcher := client.New(cfg.HTTP.Timeout)
	extractor := extract.NewExtractor(extract.WithPairing(pairing), extract.WithLogger(logger))

	opts := Options{
		URL:       cfg.Source.URL,
		AllowList: cfg.Source.RatesToKeep,
		Source:    cfg.Source.Name,
		Destination: publish.Destination{
			Bucket:    cfg.Storage.Bucket,
			TableName: cfg.Storage.TableName,
		},
		DryRun: !upload,
		RunID:  runID,
	}

	if !upload {
		return New(fetcher, extractor, nil, logger), opts, nil
	}

	// 3. Publisher の初期化
	s3Client, err := publish.NewS3Client(ctx, publish.S3Config{
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
	})
	if err != nil {
		return nil, Options{}, err
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.HTTP.MaxRetries
	publisher := publish.New(s3Client,
		publish.WithRetryConfig(retryCfg),
		publish.WithMetadata(map[string]string{
			"source": cfg.Source.Name,
			"run-id": runID,
		}),
	)

	return New(fetcher, extractor, publisher, logger), opts, nil
}
