package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/shouni/go-snb-rates/pkg/client"
	"github.com/shouni/go-snb-rates/pkg/feed"
)

var (
	// feedURLFlag は --url で指定されたフィードURLです。空の場合は設定値を使います。
	feedURLFlag string
	// feedLinksOnly が true の場合、公表のURLだけを1行ずつ出力します。
	feedLinksOnly bool
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "為替レート公表のRSSフィードを取得し、一覧表示します",
	Long:  `中央銀行が配信する為替レートのRSSフィードを取得し、公表のタイトル、URL、公開日時を表示します。当日の公表を確認してから run を実行する用途を想定しています。--links を付けるとURLだけを出力します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig == nil {
			return fmt.Errorf("設定が初期化されていません。rootコマンドのPreRunを確認してください")
		}

		feedURL := appConfig.Source.FeedURL
		if feedURLFlag != "" {
			u, err := ensureScheme(feedURLFlag)
			if err != nil {
				return err
			}
			feedURL = u
		}
		if feedURL == "" {
			return fmt.Errorf("フィードURLが設定されていません (source.feed_url または --url)")
		}

		ctx, cancel := context.WithTimeout(context.Background(), overallTimeout(appConfig))
		defer cancel()

		slog.Info("フィードを取得します", "url", feedURL)
		parsed, err := feed.NewReader(client.New(appConfig.HTTP.Timeout)).FetchAndParse(ctx, feedURL)
		if err != nil {
			return fmt.Errorf("フィード解析パイプラインの実行エラー: %w", err)
		}

		writeFeed(cmd.OutOrStdout(), parsed, feedLinksOnly)
		return nil
	},
}

// writeFeed はフィードの内容を出力します。linksOnly の場合はURLだけを1行ずつ出力します。
func writeFeed(out io.Writer, parsed *gofeed.Feed, linksOnly bool) {
	adapter := feed.NewFeedAdapter(parsed)
	if linksOnly {
		for _, link := range feed.GetAllLinks(adapter) {
			fmt.Fprintln(out, link)
		}
		return
	}

	announcements := adapter.Announcements()
	if parsed != nil {
		fmt.Fprintf(out, "--- フィード: %s ---\n", parsed.Title)
	}
	fmt.Fprintf(out, "合計件数: %d\n", len(announcements))
	for i, a := range announcements {
		fmt.Fprintf(out, "[%d] %s\n", i+1, a.Title)
		if a.Link != "" {
			fmt.Fprintf(out, "    URL: %s\n", a.Link)
		}
		if a.Published != nil {
			fmt.Fprintf(out, "    公開日: %s\n", a.Published.Format("2006-01-02 15:04:05"))
		}
	}
}

func init() {
	feedCmd.Flags().StringVarP(&feedURLFlag, "url", "u", "", "フィードのURL (省略時は source.feed_url)")
	feedCmd.Flags().BoolVarP(&feedLinksOnly, "links", "l", false, "公表のURLだけを出力します")
}
