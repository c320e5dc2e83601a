package types

import (
	"errors"
	"fmt"
)

// ErrMalformedInput は、整形処理に不正な入力 (nil のマップなど) が渡された場合のエラーです。
var ErrMalformedInput = errors.New("整形対象の入力が不正です")

// 終了コード
const (
	ExitOK            = 0
	ExitFetchOrParse  = 1
	ExitUploadFailure = 2
)

// NetworkError は、ページ取得時の通信失敗 (タイムアウト、接続不可、非成功ステータス) を表します。
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ページの取得に失敗しました (URL: %s): %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExtractionError は、マークアップ全体が構造的に解析できない場合のエラーです。
// ペア単位の抽出失敗はこのエラーにはならず、NotFound として記録されます。
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("レートの抽出に失敗しました: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UploadError は、オブジェクトストレージへのアップロード失敗 (認証、バケット不在、通信) を表します。
type UploadError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("アップロードに失敗しました (s3://%s/%s): %v", e.Bucket, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ExitCode は、エラーの種類からプロセスの終了コードを決定します。
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return ExitUploadFailure
	}
	return ExitFetchOrParse
}
