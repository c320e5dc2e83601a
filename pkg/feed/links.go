package feed

import (
	"time"

	"github.com/mmcdole/gofeed"
)

// Announcement は、中央銀行のRSSフィードに掲載された為替レート公表の1件です。
type Announcement struct {
	Title     string
	Link      string
	Published *time.Time
}

// LinkSource は、リンクのリストを提供できる任意の型を表します。
type LinkSource interface {
	GetLinks() []string
}

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetLinks は空でないリンクをフィードの順序で返します。
func (a *FeedAdapter) GetLinks() []string {
	if a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	urls := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item.Link != "" {
			urls = append(urls, item.Link)
		}
	}
	return urls
}

// Announcements はフィードの各アイテムを Announcement に変換します。
// 公開日時はローカル時刻に揃えます。
func (a *FeedAdapter) Announcements() []Announcement {
	if a.Feed == nil {
		return []Announcement{}
	}

	out := make([]Announcement, 0, len(a.Items))
	for _, item := range a.Items {
		if item == nil {
			continue
		}
		ann := Announcement{Title: item.Title, Link: item.Link}
		if item.PublishedParsed != nil {
			local := item.PublishedParsed.Local()
			ann.Published = &local
		}
		out = append(out, ann)
	}
	return out
}

// GetAllLinks は LinkSource からリンクを抽出する汎用関数です。
func GetAllLinks(source LinkSource) []string {
	if source == nil {
		return []string{}
	}
	return source.GetLinks()
}
