package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shouni/go-snb-rates/internal/pipeline"
	"github.com/shouni/go-snb-rates/pkg/config"
)

// runPipeline は、設定からパイプラインを組み立てて1回実行します。
func runPipeline(cfg *config.Config, upload bool) (*pipeline.Report, error) {
	if cfg == nil {
		return nil, fmt.Errorf("設定が初期化されていません。rootコマンドのPreRunを確認してください")
	}

	// 1. 全体処理のコンテキストを設定
	ctx, cancel := context.WithTimeout(context.Background(), overallTimeout(cfg))
	defer cancel()

	// 2. 依存性の初期化
	runID := uuid.NewString()
	p, opts, err := pipeline.FromConfig(ctx, cfg, runID, upload, slog.Default())
	if err != nil {
		return nil, err
	}

	// 3. 実行
	return p.Run(ctx, opts)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "為替レートを取得し、CSVとしてオブジェクトストレージへ保存します",
	Long: `設定されたURLから中央銀行のページを取得し、許可リストの通貨ペアのレートを抽出して、
{table_name}/date_uploaded={YYYY-MM-DD}/exchange_rates_{YYYY-MM-DD}.csv へアップロードします。
引数なしで起動した場合もこのコマンドが実行されます。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := runPipeline(appConfig, true)
		if err != nil {
			exitOnError(err)
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "完了: %d 件のレートを s3://%s/%s に保存しました\n",
			len(report.Table), appConfig.Storage.Bucket, report.Key)
		return nil
	},
}
