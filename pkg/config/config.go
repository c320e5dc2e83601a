// Package config は、YAML ファイル、.env、環境変数から実行時の設定を組み立てます。
//
// 設定ファイルでは ${VAR} 形式で環境変数を参照できます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 環境変数名
const (
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_ACCESS_SECRET_KEY"
	EnvBucket          = "AWS_UPLOAD_BUCKET_NAME"
	EnvRatesURL        = "SNB_RATES_URL"
	EnvRatesToKeep     = "SNB_RATES_TO_KEEP"
	EnvMaxRetries      = "SNB_MAX_RETRIES"
)

// Config は実行1回分の設定です。プロセス開始時に一度だけ組み立て、各処理へ引数で渡します。
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// SourceConfig は取得元のページと抽出対象です。
type SourceConfig struct {
	URL         string   `yaml:"url"`
	Name        string   `yaml:"name"`          // source 列に入る識別子
	RatesToKeep []string `yaml:"rates_to_keep"` // 許可リスト
	Pairing     string   `yaml:"pairing"`       // auto | positional
	FeedURL     string   `yaml:"feed_url"`
}

// StorageConfig はアップロード先と静的な認証情報です。
type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	TableName       string `yaml:"table_name"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

// HTTPConfig は通信に関する設定です。
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries uint64        `yaml:"max_retries"`
}

// Default は組み込みのデフォルト設定を返します。
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			URL:         "https://www.snb.ch/en/",
			Name:        "swiss_national_bank",
			RatesToKeep: []string{"EUR / CHF", "USD / CHF", "100 JPY / CHF", "GBP / CHF"},
			Pairing:     "auto",
			FeedURL:     "https://www.snb.ch/public/en/rss/exrates",
		},
		Storage: StorageConfig{
			Region:    "eu-north-1",
			TableName: "exchange_rate_data",
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 0,
		},
	}
}

// LoadDotEnv は .env ファイルを読み込み、未設定の環境変数だけを補います。
// ファイルが存在しない場合は何もしません。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read dotenv file: %w", err)
	}
	return nil
}

// Load はデフォルト設定に YAML ファイル (path が空でなければ) と環境変数を重ねます。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAccessKeyID); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv(EnvSecretAccessKey); v != "" {
		c.Storage.SecretAccessKey = v
	}
	if v := os.Getenv(EnvBucket); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv(EnvRatesURL); v != "" {
		c.Source.URL = v
	}
	if v := os.Getenv(EnvRatesToKeep); v != "" {
		c.Source.RatesToKeep = splitList(v)
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be a non-negative integer: %w", EnvMaxRetries, err)
		}
		c.HTTP.MaxRetries = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate は取得処理に必要な項目を検証します。
func (c *Config) Validate() error {
	var errs []error
	if c.Source.URL == "" {
		errs = append(errs, errors.New("source.url is required"))
	}
	if c.Source.Name == "" {
		errs = append(errs, errors.New("source.name is required"))
	}
	if len(c.Source.RatesToKeep) == 0 {
		errs = append(errs, errors.New("source.rates_to_keep must not be empty"))
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http.timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateUpload はアップロードに必要な項目も含めて検証します。
func (c *Config) ValidateUpload() error {
	errs := []error{c.Validate()}
	if c.Storage.Bucket == "" {
		errs = append(errs, fmt.Errorf("storage.bucket is required (%s)", EnvBucket))
	}
	if c.Storage.TableName == "" {
		errs = append(errs, errors.New("storage.table_name is required"))
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
		errs = append(errs, fmt.Errorf("storage credentials are required (%s, %s)", EnvAccessKeyID, EnvSecretAccessKey))
	}
	return errors.Join(errs...)
}
