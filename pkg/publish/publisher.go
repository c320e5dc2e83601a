package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shouni/go-snb-rates/pkg/retry"
	"github.com/shouni/go-snb-rates/pkg/table"
	"github.com/shouni/go-snb-rates/pkg/types"
)

const (
	// DefaultTableName はオブジェクトキーの先頭に付く論理テーブル名です。
	DefaultTableName = "exchange_rate_data"

	uploadDateLayout = "2006-01-02"
	contentType      = "text/csv; charset=utf-8"
)

// Uploader は、*s3.Client の PutObject と互換性のあるインターフェースです。
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Destination はアップロード先です。
type Destination struct {
	Bucket    string
	TableName string
}

// ObjectKey は、アップロード日から保存先のキーを組み立てます。
// 同じ日付に対しては常に同じキーになるため、同日の再実行は上書きになります。
func ObjectKey(tableName string, uploadDate time.Time) string {
	date := uploadDate.Format(uploadDateLayout)
	return fmt.Sprintf("%s/date_uploaded=%s/exchange_rates_%s.csv", tableName, date, date)
}

// Publisher は RateTable を CSV にしてオブジェクトストレージへ保存します。
type Publisher struct {
	uploader    Uploader
	retryConfig retry.Config
	tempDir     string
	metadata    map[string]string
	now         func() time.Time
}

// Option は Publisher の設定関数です。
type Option func(*Publisher)

// WithRetryConfig はアップロードのリトライ設定を指定します。デフォルトはリトライなしです。
func WithRetryConfig(cfg retry.Config) Option {
	return func(p *Publisher) {
		p.retryConfig = cfg
	}
}

// WithTempDir は一時ファイルの作成先を指定します。空の場合は os.TempDir() です。
func WithTempDir(dir string) Option {
	return func(p *Publisher) {
		p.tempDir = dir
	}
}

// WithMetadata はオブジェクトに付与するユーザーメタデータを追加します。
func WithMetadata(md map[string]string) Option {
	return func(p *Publisher) {
		for k, v := range md {
			p.metadata[k] = v
		}
	}
}

// WithClock はアップロード日の決定に使う時計を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// New は新しい Publisher を生成します。
func New(uploader Uploader, opts ...Option) *Publisher {
	p := &Publisher{
		uploader:    uploader,
		retryConfig: retry.DefaultConfig(),
		metadata:    make(map[string]string),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish は RateTable を一時ファイルに CSV として書き出し、1つのオブジェクトとしてアップロードします。
// 一時ファイルは成功・失敗に関わらず削除されます。
func (p *Publisher) Publish(ctx context.Context, rates types.RateTable, dest Destination) (string, error) {
	if p.uploader == nil {
		return "", fmt.Errorf("publish.Publish: Uploader cannot be nil")
	}

	key := ObjectKey(dest.TableName, p.now())

	// 1. 一時ファイルへ書き出し
	path, size, err := p.writeArtifact(rates)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				slog.Warn("一時ファイルの削除に失敗しました", "path", path, "error", rmErr)
			}
		}()
	}
	if err != nil {
		return "", err
	}

	// 2. アップロード (試行ごとにファイルを開き直す)
	metadata := make(map[string]string, len(p.metadata)+1)
	for k, v := range p.metadata {
		metadata[k] = v
	}
	metadata["rows"] = strconv.Itoa(len(rates))

	op := func() error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("一時ファイルを開けません: %w", err)
		}
		defer f.Close()

		_, err = p.uploader.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(dest.Bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(size),
			ContentType:   aws.String(contentType),
			Metadata:      metadata,
		})
		return err
	}

	if err := retry.Do(ctx, p.retryConfig, fmt.Sprintf("s3://%s/%s へのアップロード", dest.Bucket, key), op, nil); err != nil {
		return "", &types.UploadError{Bucket: dest.Bucket, Key: key, Err: err}
	}

	slog.Info("アップロードが完了しました", "bucket", dest.Bucket, "key", key, "rows", len(rates), "bytes", size)
	return key, nil
}

// writeArtifact は CSV を一時ファイルに書き出し、そのパスとサイズを返します。
// 作成後に失敗した場合もパスを返すため、呼び出し元で削除できます。
func (p *Publisher) writeArtifact(rates types.RateTable) (string, int64, error) {
	f, err := os.CreateTemp(p.tempDir, "exchange_rates_*.csv")
	if err != nil {
		return "", 0, fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	path := f.Name()

	if err := table.WriteCSV(f, rates); err != nil {
		f.Close()
		return path, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return path, 0, fmt.Errorf("一時ファイルの情報取得に失敗しました: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, 0, fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}
	return path, info.Size(), nil
}
