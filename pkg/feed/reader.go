package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// Fetcher は Reader が依存する取得処理のインターフェースです。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Reader は為替レート公表のRSS/Atomフィードを取得・解析します。
type Reader struct {
	client Fetcher
}

// NewReader は新しい Reader を生成します。
func NewReader(client Fetcher) *Reader {
	return &Reader{client: client}
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (r *Reader) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if r.client == nil {
		return nil, fmt.Errorf("feed.FetchAndParse: Fetcher cannot be nil")
	}
	body, err := r.client.FetchBytes(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s): %w", feedURL, err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, err)
	}
	return parsed, nil
}
