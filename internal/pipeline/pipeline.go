package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-snb-rates/pkg/extract"
	"github.com/shouni/go-snb-rates/pkg/publish"
	"github.com/shouni/go-snb-rates/pkg/table"
	"github.com/shouni/go-snb-rates/pkg/types"
)

// Stage はパイプラインの状態です。各段階は直前の段階が成功した場合にのみ進みます。
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageShaping    Stage = "shaping"
	StagePublishing Stage = "publishing"
	StageDone       Stage = "done"
	StageAborted    Stage = "aborted"
)

// Fetcher はページ本文をテキストで返す取得処理です。
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Publisher は RateTable を保存先へ書き出します。
type Publisher interface {
	Publish(ctx context.Context, rates types.RateTable, dest publish.Destination) (string, error)
}

// Options は1回の実行に必要なパラメータです。
type Options struct {
	URL         string
	AllowList   []string
	Source      string
	Destination publish.Destination
	// DryRun の場合は整形まで行い、アップロードはしません。
	DryRun bool
	RunID  string
	Now    func() time.Time
}

// Report は実行結果です。失敗時も到達した段階までの内容を保持します。
type Report struct {
	RunID string
	Stage Stage
	Rates *types.RateMap
	Table types.RateTable
	Key   string
}

// Pipeline は Fetcher → Extractor → Shaper → Publisher を一度だけ順に実行します。
type Pipeline struct {
	fetcher   Fetcher
	extractor *extract.Extractor
	publisher Publisher
	logger    *slog.Logger
}

// New は Pipeline を生成します。DryRun だけを使う場合 publisher は nil でも構いません。
func New(fetcher Fetcher, extractor *extract.Extractor, publisher Publisher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		publisher: publisher,
		logger:    logger,
	}
}

// Run はパイプラインを実行します。いずれかの段階が失敗すると StageAborted で中断し、エラーを返します。
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == "" {
		opts.Source = table.DefaultSource
	}

	report := &Report{RunID: opts.RunID}
	log := p.logger.With("run_id", opts.RunID)

	abort := func(err error) (*Report, error) {
		log.Error("パイプラインを中断しました", "stage", report.Stage, "error", err)
		failed := report.Stage
		report.Stage = StageAborted
		return report, fmt.Errorf("%s 段階で失敗しました: %w", failed, err)
	}
	enter := func(s Stage) {
		report.Stage = s
		log.Debug("段階を開始します", "stage", s)
	}

	// 1. 取得
	enter(StageFetching)
	if p.fetcher == nil || p.extractor == nil {
		return abort(fmt.Errorf("pipeline.Run: Fetcher と Extractor は必須です"))
	}
	markup, err := p.fetcher.FetchText(ctx, opts.URL)
	if err != nil {
		return abort(err)
	}
	log.Info("ページを取得しました", "url", opts.URL, "bytes", len(markup))

	// 2. 抽出
	enter(StageExtracting)
	rates, err := p.extractor.Extract([]byte(markup), opts.AllowList)
	if err != nil {
		return abort(err)
	}
	report.Rates = rates
	log.Info("レートを抽出しました", "pairs", rates.Len(), "allow_list", len(opts.AllowList))

	// 3. 整形
	enter(StageShaping)
	rows, err := table.Shape(rates, opts.Source, opts.Now())
	if err != nil {
		return abort(err)
	}
	report.Table = rows

	if opts.DryRun {
		report.Stage = StageDone
		log.Info("ドライランのためアップロードを省略しました", "rows", len(rows))
		return report, nil
	}

	// 4. 保存
	enter(StagePublishing)
	if p.publisher == nil {
		return abort(fmt.Errorf("pipeline.Run: Publisher cannot be nil"))
	}
	key, err := p.publisher.Publish(ctx, rows, opts.Destination)
	if err != nil {
		return abort(err)
	}
	report.Key = key
	report.Stage = StageDone
	log.Info("パイプラインが完了しました", "rows", len(rows), "key", key)
	return report, nil
}
