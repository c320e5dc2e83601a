package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NotFound は、ペアの抽出に失敗した場合にラベルと値の両方へ記録される値です。
const NotFound = "not_found"

// RateRecord は、1通貨ペア分のレートと出所メタデータを保持します。
// レートはサイトの表記 (小数点、丸め) をそのまま保持するため文字列です。
type RateRecord struct {
	CurrencyPair string    // 通貨ペアのラベル (例: "EUR / CHF")
	ExchangeRate string    // サイト上の表記そのままのレート
	Source       string    // 取得元の識別子
	CollectedAt  time.Time // 整形時点の壁時計時刻
}

// Decimal はレート文字列を10進数として解釈します。
// 値そのものは変換しないため、診断用途に限られます。
func (r RateRecord) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.ExchangeRate)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("レート %q を数値として解釈できません (%s): %w", r.ExchangeRate, r.CurrencyPair, err)
	}
	return d, nil
}

// RateTable は、抽出順に並んだ RateRecord の列です。
type RateTable []RateRecord

// PairResult は、1ペア分の抽出結果です。
// 抽出に失敗したペアは Err を持ち、Label と Value は NotFound になります。
type PairResult struct {
	Index int
	Label string
	Value string
	Err   error
}

// Found は、ペアの抽出に成功したかどうかを返します。
func (p PairResult) Found() bool {
	return p.Err == nil
}

// NotFoundPair は、抽出に失敗したペアを表す PairResult を生成します。
func NotFoundPair(index int, err error) PairResult {
	return PairResult{Index: index, Label: NotFound, Value: NotFound, Err: err}
}

// RateMap は、通貨ペアのラベルからレート文字列への挿入順を保持するマップです。
// 同じラベルを再設定すると値は上書きされ、位置は最初の挿入位置のまま維持されます。
type RateMap struct {
	keys   []string
	values map[string]string
}

// NewRateMap は空の RateMap を生成します。
func NewRateMap() *RateMap {
	return &RateMap{values: make(map[string]string)}
}

// Set はラベルに値を設定します。
func (m *RateMap) Set(label, value string) {
	if _, ok := m.values[label]; !ok {
		m.keys = append(m.keys, label)
	}
	m.values[label] = value
}

// Get はラベルに対応する値を返します。
func (m *RateMap) Get(label string) (string, bool) {
	v, ok := m.values[label]
	return v, ok
}

// Len はエントリ数を返します。
func (m *RateMap) Len() int {
	return len(m.keys)
}

// Keys は挿入順のラベル一覧のコピーを返します。
func (m *RateMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each は挿入順に各エントリを走査します。
func (m *RateMap) Each(fn func(label, value string)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}
