package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-snb-rates/pkg/client"
	"github.com/shouni/go-snb-rates/pkg/config"
	"github.com/shouni/go-snb-rates/pkg/extract"
	"github.com/shouni/go-snb-rates/pkg/publish"
	"github.com/shouni/go-snb-rates/pkg/types"
)

const snbPage = `<html><body><ul class="rates">
<li class="cms-financial-rates-item">
  <div class="cms-financial-rates-item__key"><span class="h-typo-small">EUR / CHF</span></div>
  <div class="cms-financial-rates-item__value"><span class="h-typo-t3">0.95</span></div>
</li>
<li class="cms-financial-rates-item">
  <div class="cms-financial-rates-item__key"><span class="h-typo-small">Gold / CHF</span></div>
  <div class="cms-financial-rates-item__value"><span class="h-typo-t3">52000</span></div>
</li>
</ul></body></html>`

type stubFetcher struct {
	text string
	err  error
}

func (s *stubFetcher) FetchText(ctx context.Context, url string) (string, error) {
	return s.text, s.err
}

type recordingUploader struct {
	calls int
	key   string
	body  string
	err   error
}

func (r *recordingUploader) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	r.calls++
	r.key = aws.ToString(params.Key)
	b, _ := io.ReadAll(params.Body)
	r.body = string(b)
	if r.err != nil {
		return nil, r.err
	}
	return &s3.PutObjectOutput{}, nil
}

var fixedNow = time.Date(2023, 10, 2, 9, 15, 30, 0, time.Local)

func runOptions() Options {
	return Options{
		URL:         "https://www.snb.ch/en/",
		AllowList:   []string{"EUR / CHF", "USD / CHF"},
		Source:      "swiss_national_bank",
		Destination: publish.Destination{Bucket: "rates-bucket", TableName: publish.DefaultTableName},
		RunID:       "run-1",
		Now:         func() time.Time { return fixedNow },
	}
}

func newPublisher(t *testing.T, up *recordingUploader) *publish.Publisher {
	return publish.New(up, publish.WithTempDir(t.TempDir()), publish.WithClock(func() time.Time { return fixedNow }))
}

func TestRun_Success(t *testing.T) {
	up := &recordingUploader{}
	p := New(&stubFetcher{text: snbPage}, extract.NewExtractor(), newPublisher(t, up), nil)

	report, err := p.Run(context.Background(), runOptions())
	require.NoError(t, err)
	assert.Equal(t, StageDone, report.Stage)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"EUR / CHF"}, report.Rates.Keys())
	require.Len(t, report.Table, 1)
	assert.Equal(t, "0.95", report.Table[0].ExchangeRate)
	assert.Equal(t, "swiss_national_bank", report.Table[0].Source)

	assert.Equal(t, "exchange_rate_data/date_uploaded=2023-10-02/exchange_rates_2023-10-02.csv", report.Key)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, report.Key, up.key)
	assert.Equal(t, "exchange_rate,currency_pair,source,datetime_collected\n"+
		"0.95,EUR / CHF,swiss_national_bank,2023-10-02 09:15:30.000000\n", up.body)
}

func TestRun_EmptyMarkupStillUploadsHeader(t *testing.T) {
	up := &recordingUploader{}
	p := New(&stubFetcher{text: "<html><body></body></html>"}, extract.NewExtractor(), newPublisher(t, up), nil)

	report, err := p.Run(context.Background(), runOptions())
	require.NoError(t, err)
	assert.Equal(t, StageDone, report.Stage)
	assert.Equal(t, 0, report.Rates.Len())
	assert.Empty(t, report.Table)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, "exchange_rate,currency_pair,source,datetime_collected\n", up.body)
}

func TestRun_ServerErrorAbortsBeforeExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	up := &recordingUploader{}
	p := New(client.New(5*time.Second), extract.NewExtractor(), newPublisher(t, up), nil)

	opts := runOptions()
	opts.URL = server.URL
	report, err := p.Run(context.Background(), opts)
	require.Error(t, err)

	var netErr *types.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, StageAborted, report.Stage)
	assert.Nil(t, report.Rates)
	assert.Equal(t, 0, up.calls, "アップロードされてはならない")
	assert.Equal(t, types.ExitFetchOrParse, types.ExitCode(err))
}

func TestRun_UploadFailure(t *testing.T) {
	up := &recordingUploader{err: errors.New("NoSuchBucket")}
	p := New(&stubFetcher{text: snbPage}, extract.NewExtractor(), newPublisher(t, up), nil)

	report, err := p.Run(context.Background(), runOptions())
	require.Error(t, err)
	assert.Equal(t, StageAborted, report.Stage)
	assert.Empty(t, report.Key)
	assert.Equal(t, types.ExitUploadFailure, types.ExitCode(err))
	assert.Contains(t, err.Error(), string(StagePublishing))
}

func TestRun_DryRun(t *testing.T) {
	p := New(&stubFetcher{text: snbPage}, extract.NewExtractor(), nil, nil)

	opts := runOptions()
	opts.DryRun = true
	opts.RunID = ""
	report, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, StageDone, report.Stage)
	assert.NotEmpty(t, report.RunID, "RunID は自動生成される")
	assert.Len(t, report.Table, 1)
	assert.Empty(t, report.Key)
}

func TestRun_MissingPublisher(t *testing.T) {
	p := New(&stubFetcher{text: snbPage}, extract.NewExtractor(), nil, nil)
	report, err := p.Run(context.Background(), runOptions())
	require.Error(t, err)
	assert.Equal(t, StageAborted, report.Stage)
}

func TestFromConfig(t *testing.T) {
	t.Run("preview_does_not_need_credentials", func(t *testing.T) {
		cfg := config.Default()
		p, opts, err := FromConfig(context.Background(), cfg, "run-1", false, nil)
		require.NoError(t, err)
		assert.NotNil(t, p)
		assert.True(t, opts.DryRun)
		assert.Equal(t, cfg.Source.RatesToKeep, opts.AllowList)
		assert.Equal(t, "swiss_national_bank", opts.Source)
	})

	t.Run("fetching_is_done_by_the_pipeline_not_the_extractor", func(t *testing.T) {
		cfg := config.Default()
		cfg.Source.Pairing = "positional"
		p, _, err := FromConfig(context.Background(), cfg, "run-1", false, nil)
		require.NoError(t, err)
		assert.IsType(t, &client.Client{}, p.fetcher)

		// 2番目の項目に値が無いページ。positional では3番目の値が2番目のキーに対応付けられる
		markup := `<html><body><ul>
<li class="cms-financial-rates-item">
  <div class="cms-financial-rates-item__key"><span class="h-typo-small">EUR / CHF</span></div>
  <div class="cms-financial-rates-item__value"><span class="h-typo-t3">0.95</span></div>
</li>
<li class="cms-financial-rates-item">
  <div class="cms-financial-rates-item__key"><span class="h-typo-small">USD / CHF</span></div>
</li>
<li class="cms-financial-rates-item">
  <div class="cms-financial-rates-item__key"><span class="h-typo-small">GBP / CHF</span></div>
  <div class="cms-financial-rates-item__value"><span class="h-typo-t3">1.10</span></div>
</li>
</ul></body></html>`
		rates, err := p.extractor.Extract([]byte(markup), []string{"USD / CHF"})
		require.NoError(t, err)
		v, ok := rates.Get("USD / CHF")
		assert.True(t, ok)
		assert.Equal(t, "1.10", v)
	})

	t.Run("upload_requires_credentials", func(t *testing.T) {
		_, _, err := FromConfig(context.Background(), config.Default(), "run-1", true, nil)
		assert.Error(t, err)
	})

	t.Run("upload_with_static_credentials", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Bucket = "rates-bucket"
		cfg.Storage.AccessKeyID = "AKIA"
		cfg.Storage.SecretAccessKey = "secret"
		p, opts, err := FromConfig(context.Background(), cfg, "run-1", true, nil)
		require.NoError(t, err)
		assert.NotNil(t, p.publisher)
		assert.False(t, opts.DryRun)
		assert.Equal(t, publish.Destination{Bucket: "rates-bucket", TableName: "exchange_rate_data"}, opts.Destination)
	})

	t.Run("unknown_pairing", func(t *testing.T) {
		cfg := config.Default()
		cfg.Source.Pairing = "legacy"
		_, _, err := FromConfig(context.Background(), cfg, "run-1", false, nil)
		assert.Error(t, err)
	})
}
