package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html/charset"

	"github.com/shouni/go-snb-rates/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// itemSelector は、キーと値を共通で包む親要素です。
	itemSelector  = ".cms-financial-rates-item"
	keySelector   = ".cms-financial-rates-item__key"
	valueSelector = ".cms-financial-rates-item__value"

	// キー/値ノード内で、実際のラベルとレートを持つ要素
	labelSelector = "span.h-typo-small"
	rateSelector  = "span.h-typo-t3"
)

// Pairing は、キーノードと値ノードの対応付け方法です。
type Pairing string

const (
	// PairingAuto は、共通の親要素がある場合は親単位で対応付け、
	// 無い場合は出現順 (インデックス) で対応付けます。
	PairingAuto Pairing = "auto"
	// PairingPositional は、i番目のキーをi番目の値に対応付ける互換モードです。
	// 上流のマークアップ構造の変更に弱い点に注意してください。
	PairingPositional Pairing = "positional"
)

// ParsePairing は文字列を Pairing に変換します。空文字列は PairingAuto です。
func ParsePairing(s string) (Pairing, error) {
	switch Pairing(s) {
	case "", PairingAuto:
		return PairingAuto, nil
	case PairingPositional:
		return PairingPositional, nil
	}
	return "", fmt.Errorf("不明なペアリング方式です: %q (auto または positional を指定してください)", s)
}

// Extractor は、マークアップから通貨ペアとレートを抽出します。
// 取得は呼び出し側 (パイプラインの Fetcher) の責務で、Extractor は解析のみを行います。
type Extractor struct {
	pairing Pairing
	logger  *slog.Logger
}

// Option は Extractor の設定関数です。
type Option func(*Extractor)

// WithPairing は対応付け方法を設定します。
func WithPairing(p Pairing) Option {
	return func(e *Extractor) {
		e.pairing = p
	}
}

// WithLogger はペア単位の警告を出力するロガーを設定します。
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		pairing: PairingAuto,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ----------------------------------------------------------------------
// メイン関数
// ----------------------------------------------------------------------

// Extract はマークアップから全ペアを抽出し、許可リストに含まれるラベルだけを残します。
// ノードが一つも無い場合はエラーではなく空のマップを返します。
func (e *Extractor) Extract(markup []byte, allow []string) (*types.RateMap, error) {
	pairs, err := e.Pairs(markup)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(allow))
	for _, label := range allow {
		allowed[label] = struct{}{}
	}

	rates := types.NewRateMap()
	for _, p := range pairs {
		if _, ok := allowed[p.Label]; ok {
			rates.Set(p.Label, p.Value)
		}
	}
	return rates, nil
}

// Pairs はマークアップ中の全ペアを文書順に返します。
// 個々のペアの失敗は NotFound として記録され、処理は継続されます。
func (e *Extractor) Pairs(markup []byte) ([]types.PairResult, error) {
	doc, err := parseDocument(markup)
	if err != nil {
		return nil, &types.ExtractionError{Err: err}
	}

	var pairs []types.PairResult
	if e.pairing == PairingAuto && hasParentItems(doc) {
		pairs = e.pairByParent(doc)
	} else {
		pairs = pairByPosition(doc.Find(keySelector), doc.Find(valueSelector), 0)
	}

	for _, p := range pairs {
		if !p.Found() {
			e.logger.Warn("為替レートの取得でエラーが発生しました", "index", p.Index, "error", p.Err)
		}
	}
	return pairs, nil
}

// ----------------------------------------------------------------------
// ヘルパー関数
// ----------------------------------------------------------------------

// parseDocument はマークアップをUTF-8に揃えてから goquery.Document に変換します。
func parseDocument(markup []byte) (*goquery.Document, error) {
	if !utf8.Valid(markup) {
		enc, name, _ := charset.DetermineEncoding(markup, "")
		decoded, err := enc.NewDecoder().Bytes(markup)
		if err != nil {
			return nil, fmt.Errorf("文字コード %s からの変換に失敗しました: %w", name, err)
		}
		markup = decoded
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return doc, nil
}

func hasParentItems(doc *goquery.Document) bool {
	return doc.Find(itemSelector).Has(keySelector).Length() > 0
}

// pairByParent は共通の親要素ごとにキーと値を対応付けます。
// 親要素の外にあるキー/値ノードは、親要素の後ろに出現順で対応付けます。
func (e *Extractor) pairByParent(doc *goquery.Document) []types.PairResult {
	var pairs []types.PairResult
	items := doc.Find(itemSelector).Has(keySelector)
	items.Each(func(i int, item *goquery.Selection) {
		key := item.Find(keySelector).First()
		value := item.Find(valueSelector).First()
		if value.Length() == 0 {
			pairs = append(pairs, types.NotFoundPair(i, fmt.Errorf("%d番目の項目に値ノードがありません", i)))
			return
		}
		pairs = append(pairs, readPair(i, key, value))
	})

	orphanKeys := doc.Find(keySelector).FilterFunction(outsideItem)
	if orphanKeys.Length() == 0 {
		return pairs
	}
	orphanValues := doc.Find(valueSelector).FilterFunction(outsideItem)
	e.logger.Warn("親要素の外にあるキーノードを出現順で対応付けます",
		"keys", orphanKeys.Length(), "values", orphanValues.Length())

	return append(pairs, pairByPosition(orphanKeys, orphanValues, items.Length())...)
}

func outsideItem(_ int, s *goquery.Selection) bool {
	return s.Closest(itemSelector).Length() == 0
}

// pairByPosition はi番目のキーノードとi番目の値ノードを対応付けます。
// offset は結果の Index に加算されます。
func pairByPosition(keys, values *goquery.Selection, offset int) []types.PairResult {
	pairs := make([]types.PairResult, 0, keys.Length())
	keys.Each(func(i int, key *goquery.Selection) {
		idx := offset + i
		if i >= values.Length() {
			pairs = append(pairs, types.NotFoundPair(idx, fmt.Errorf("キーノード数 (%d) が値ノード数 (%d) を超えています", keys.Length(), values.Length())))
			return
		}
		pairs = append(pairs, readPair(idx, key, values.Eq(i)))
	})
	return pairs
}

// readPair は、キー/値ノード内のラベル要素とレート要素からテキストを取り出します。
func readPair(i int, key, value *goquery.Selection) types.PairResult {
	label := key.Find(labelSelector).First()
	if label.Length() == 0 {
		return types.NotFoundPair(i, fmt.Errorf("%d番目のキーノードに %s がありません", i, labelSelector))
	}
	rate := value.Find(rateSelector).First()
	if rate.Length() == 0 {
		return types.NotFoundPair(i, fmt.Errorf("%d番目の値ノードに %s がありません", i, rateSelector))
	}
	return types.PairResult{
		Index: i,
		Label: textUtils.NormalizeText(label.Text()),
		Value: textUtils.NormalizeText(rate.Text()),
	}
}
