package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-snb-rates/pkg/config"
	"github.com/shouni/go-snb-rates/pkg/types"
)

// --- グローバル定数 ---

const (
	appName = "snb-rates"

	// 全体処理のタイムアウトは、HTTPタイムアウトにこの係数 (+リトライ回数) を掛けたものです。
	overallTimeoutFactor = 2
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	ConfigPath string // --config YAML設定ファイル
	EnvFile    string // --env-file .envファイル
	TimeoutSec int    // --timeout タイムアウト (秒)
	MaxRetries int    // --max-retries アップロードのリトライ回数
	Pairing    string // --pairing キーと値の対応付け方法
}

var Flags AppFlags

// appConfig は PersistentPreRunE で一度だけ組み立てられ、各サブコマンドへ渡されます。
var appConfig *config.Config

// osExit はテストで差し替えるための os.Exit です。
var osExit = os.Exit

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&Flags.ConfigPath, "config", "", "YAML設定ファイルのパス (省略時は環境変数とデフォルト値のみ)")
	rootCmd.PersistentFlags().StringVar(&Flags.EnvFile, "env-file", ".env", "読み込む .env ファイルのパス")
	rootCmd.PersistentFlags().IntVar(&Flags.TimeoutSec, "timeout", 0, "HTTPリクエストのタイムアウト時間（秒、0は設定値を使用）")
	rootCmd.PersistentFlags().IntVar(&Flags.MaxRetries, "max-retries", 0, "アップロードのリトライ最大回数 (デフォルトはリトライなし)")
	rootCmd.PersistentFlags().StringVar(&Flags.Pairing, "pairing", "", "キーと値の対応付け方法 (auto | positional)")
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	// 1. ロガーの設定
	level := slog.LevelInfo
	if clibase.Flags.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// 2. 設定の読み込み
	if err := config.LoadDotEnv(Flags.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load(Flags.ConfigPath)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}

	appConfig = cfg
	slog.Debug("設定を読み込みました",
		"url", cfg.Source.URL,
		"rates_to_keep", cfg.Source.RatesToKeep,
		"bucket", cfg.Storage.Bucket,
		"region", cfg.Storage.Region,
		"timeout", cfg.HTTP.Timeout,
		"max_retries", cfg.HTTP.MaxRetries,
	)
	return nil
}

// applyFlagOverrides は明示的に指定されたフラグだけを設定に反映します。
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		if Flags.TimeoutSec < 0 {
			return fmt.Errorf("--timeout は0以上を指定してください: %d", Flags.TimeoutSec)
		}
		cfg.HTTP.Timeout = time.Duration(Flags.TimeoutSec) * time.Second
	}
	if flags.Changed("max-retries") {
		if Flags.MaxRetries < 0 {
			return fmt.Errorf("--max-retries は0以上を指定してください: %d", Flags.MaxRetries)
		}
		cfg.HTTP.MaxRetries = uint64(Flags.MaxRetries)
	}
	if flags.Changed("pairing") {
		cfg.Source.Pairing = Flags.Pairing
	}

	var err error
	if cfg.Source.URL, err = ensureScheme(cfg.Source.URL); err != nil {
		return fmt.Errorf("source.url: %w", err)
	}
	if cfg.Source.FeedURL != "" {
		if cfg.Source.FeedURL, err = ensureScheme(cfg.Source.FeedURL); err != nil {
			return fmt.Errorf("source.feed_url: %w", err)
		}
	}
	return nil
}

// overallTimeout は取得・アップロード全体のタイムアウトを返します。
func overallTimeout(cfg *config.Config) time.Duration {
	return cfg.HTTP.Timeout * time.Duration(overallTimeoutFactor+cfg.HTTP.MaxRetries)
}

// exitOnError は、エラーの種類に応じた終了コードでプロセスを終了させます。
// 取得・解析の失敗は 1、アップロードの失敗は 2 です。
func exitOnError(err error) {
	if err == nil {
		return
	}
	code := types.ExitCode(err)
	slog.Error("アプリケーションエラー", "error", err, "exit_code", code)
	osExit(code)
}

// --- エントリポイント ---

// defaultCommand はサブコマンドが指定されなかった場合に実行されるコマンドです。
const defaultCommand = "run"

// WithDefaultCommand は、サブコマンドを含まない引数列の先頭 (プログラム名の直後) に run を補います。
// `snb-rates --verbose` や `snb-rates --config x.yaml` も run として実行されます。
// ヘルプ指定 (-h / --help) はそのまま残します。
func WithDefaultCommand(args []string) []string {
	if len(args) == 0 {
		return args
	}
	known := map[string]struct{}{"help": {}, "completion": {}}
	for _, c := range []*cobra.Command{runCmd, previewCmd, feedCmd} {
		known[c.Name()] = struct{}{}
	}
	for _, a := range args[1:] {
		if a == "-h" || a == "--help" {
			return args
		}
		if _, ok := known[a]; ok {
			return args
		}
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], defaultCommand)
	return append(out, args[1:]...)
}

// Execute は、clibase を使ってルートコマンドを組み立て、実行します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		runCmd,
		previewCmd,
		feedCmd,
	)
}
