package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shouni/go-snb-rates/pkg/types"
)

const (
	// DefaultSource は取得元の識別子です。
	DefaultSource = "swiss_national_bank"

	// CollectedAtLayout は datetime_collected 列の時刻フォーマットです。
	CollectedAtLayout = "2006-01-02 15:04:05.000000"
)

// Header は CSV のヘッダー行です。exchange_rate が currency_pair より先に来ます。
var Header = []string{"exchange_rate", "currency_pair", "source", "datetime_collected"}

// Shape は、ラベルからレートへのマップを RateTable に変換します。
// 行の順序はマップの挿入順 (文書順) に従い、レート値の検証は行いません。
func Shape(rates *types.RateMap, source string, now time.Time) (types.RateTable, error) {
	if rates == nil {
		return nil, fmt.Errorf("table.Shape: %w", types.ErrMalformedInput)
	}

	table := make(types.RateTable, 0, rates.Len())
	rates.Each(func(label, value string) {
		table = append(table, types.RateRecord{
			CurrencyPair: label,
			ExchangeRate: value,
			Source:       source,
			CollectedAt:  now,
		})
	})
	return table, nil
}

// CheckNumeric は各行の exchange_rate を10進数として解釈します。
// 戻り値のスライスは行と同じ順序で、解釈できなかった行はゼロ値になります。
// 解釈できない行が1つでもあれば、行ごとのエラーをまとめて返します。
func CheckNumeric(table types.RateTable) ([]decimal.Decimal, error) {
	values := make([]decimal.Decimal, len(table))
	var errs []error
	for i, rec := range table {
		d, err := rec.Decimal()
		if err != nil {
			errs = append(errs, fmt.Errorf("%d行目: %w", i+1, err))
			continue
		}
		values[i] = d
	}
	return values, errors.Join(errs...)
}

// WriteCSV は RateTable をヘッダー付きのカンマ区切りテキストとして書き出します。
func WriteCSV(w io.Writer, table types.RateTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗しました: %w", err)
	}
	for _, rec := range table {
		row := []string{
			rec.ExchangeRate,
			rec.CurrencyPair,
			rec.Source,
			rec.CollectedAt.Format(CollectedAtLayout),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("CSV行の書き込みに失敗しました (%s): %w", rec.CurrencyPair, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("CSVの書き込みに失敗しました: %w", err)
	}
	return nil
}

// ReadCSV は WriteCSV が出力した形式を RateTable に読み戻します。
func ReadCSV(r io.Reader) (types.RateTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSVが空です")
		}
		return nil, fmt.Errorf("CSVヘッダーの読み込みに失敗しました: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, fmt.Errorf("CSVヘッダーが不正です: %d列目は %q であるべきところ %q でした", i+1, col, header[i])
		}
	}

	table := types.RateTable{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV行の読み込みに失敗しました: %w", err)
		}
		collectedAt, err := time.ParseInLocation(CollectedAtLayout, row[3], time.Local)
		if err != nil {
			return nil, fmt.Errorf("datetime_collected の解析に失敗しました (%q): %w", row[3], err)
		}
		table = append(table, types.RateRecord{
			ExchangeRate: row[0],
			CurrencyPair: row[1],
			Source:       row[2],
			CollectedAt:  collectedAt,
		})
	}
	return table, nil
}
