package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-snb-rates/pkg/table"
	"github.com/shouni/go-snb-rates/pkg/types"
)

// previewStrict が true の場合、数値として解釈できないレートがあれば失敗します。
var previewStrict bool

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "アップロードせずに、保存されるCSVを標準出力に表示します",
	Long: `取得・抽出・整形までを実行し、アップロードされるはずのCSVをそのまま標準出力へ書き出します。認証情報は不要です。
--strict を付けると exchange_rate 列を10進数として検査し、解釈できない行があれば終了コード 1 で失敗します。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := runPipeline(appConfig, false)
		if err != nil {
			exitOnError(err)
			return err
		}
		if err := table.WriteCSV(cmd.OutOrStdout(), report.Table); err != nil {
			return err
		}
		if previewStrict {
			if err := checkRates(report.Table); err != nil {
				exitOnError(err)
				return err
			}
		}
		return nil
	},
}

// checkRates は exchange_rate 列を検査し、解釈できた値をデバッグログに出力します。
func checkRates(rates types.RateTable) error {
	values, err := table.CheckNumeric(rates)
	for i, rec := range rates {
		slog.Debug("レート検査", "currency_pair", rec.CurrencyPair, "exchange_rate", values[i].String())
	}
	if err != nil {
		return fmt.Errorf("数値として解釈できないレートがあります: %w", err)
	}
	return nil
}

func init() {
	previewCmd.Flags().BoolVar(&previewStrict, "strict", false, "exchange_rate 列が10進数として解釈できることを検査します")
}
