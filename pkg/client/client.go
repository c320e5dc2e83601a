package client

import (
	"context"
	"net/http"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/go-snb-rates/pkg/types"
)

// ----------------------------------------------------------------------
// 定数とインターフェース
// ----------------------------------------------------------------------

const (
	// DefaultHTTPTimeout は、デフォルトのHTTPタイムアウトです。
	DefaultHTTPTimeout = 30 * time.Second
)

// Doer は、標準の *http.Client.Do()と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client は httpkit.Client をラップし、取得失敗を types.NetworkError として返します。
// リトライ回数のデフォルトは 0 で、1回の実行につき1回だけリクエストします。
type Client struct {
	*httpkit.Client
}

// ----------------------------------------------------------------------
// 設定とコンストラクタ
// ----------------------------------------------------------------------

// ClientOption はClientの設定を行うための関数型です。
type ClientOption func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		httpkit.WithHTTPClient(doer)(c.Client)
	}
}

// WithMaxRetries は最大リトライ回数を設定します。
func WithMaxRetries(max uint64) ClientOption {
	return func(c *Client) {
		httpkit.WithMaxRetries(max)(c.Client)
	}
}

// New は新しいClientを初期化します。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	// 単発の取得がデフォルト。オプションで上書きされない限りリトライしない。
	c := &Client{
		Client: httpkit.New(timeout, httpkit.WithMaxRetries(0)),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ----------------------------------------------------------------------
// 取得処理
// ----------------------------------------------------------------------

// FetchBytes は URL からコンテンツを取得し、生のバイト配列として返します。
// 失敗時は *types.NetworkError を返します。
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	body, err := c.Client.FetchBytes(ctx, url)
	if err != nil {
		return nil, &types.NetworkError{URL: url, Err: err}
	}
	return body, nil
}

// FetchText は URL からページを取得し、本文をテキストとして返します。
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	body, err := c.FetchBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
