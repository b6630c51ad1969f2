package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/storage"
)

type fakeFetcher struct {
	draws []models.DrawRecord
	err   error
	game  models.Game
	year  int
	month time.Month
}

func (f *fakeFetcher) FetchMonth(ctx context.Context, game models.Game, year int, month time.Month) ([]models.DrawRecord, error) {
	f.game, f.year, f.month = game, year, month
	return f.draws, f.err
}

type fakePredictor struct {
	calls  int32
	result func(n int32) *models.AnalysisResult
	block  chan struct{}
}

func (f *fakePredictor) Predict(ctx context.Context) *models.AnalysisResult {
	n := atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	return f.result(n)
}

func successResult(n int32) *models.AnalysisResult {
	return &models.AnalysisResult{
		ID:         fmt.Sprintf("pred-%d", n),
		Game:       models.Lotto649.ID,
		Status:     models.StatusSuccess,
		Statistics: &models.Statistics{TotalPeriods: 10},
		RecommendedSets: []models.RecommendedSet{
			{Label: "冷門號碼組合", Numbers: []int{1, 2, 3, 4, 5, 6}, Special: 7},
		},
		CreatedAt: time.Now(),
	}
}

type fakeHistory struct {
	results map[string]*models.AnalysisResult
	limit   int
	err     error
}

func (f *fakeHistory) GetPrediction(id string) (*models.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.results[id]
	if !ok {
		return nil, fmt.Errorf("prediction %s: %w", id, storage.ErrNotFound)
	}
	return res, nil
}

func (f *fakeHistory) ListPredictions(limit int) ([]*models.AnalysisResult, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.AnalysisResult{}
	for _, r := range f.results {
		out = append(out, r)
	}
	return out, nil
}

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestHandler(fetcher DrawFetcher, predictor Predictor, history History) *Handler {
	return NewHandler(fetcher, predictor, history, Options{
		CacheTTL:       time.Minute,
		CacheSize:      4,
		AllowedOrigins: []string{"http://localhost:3000"},
		Now:            func() time.Time { return fixedNow },
	})
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestRootAndHealth(t *testing.T) {
	h := newTestHandler(&fakeFetcher{}, &fakePredictor{result: successResult}, nil)

	rec := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var root map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, Version, root["version"])
	assert.Contains(t, root["endpoints"], "lotto649_predict")

	rec = do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","message":"Backend service is running"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraws(t *testing.T) {
	d, err := models.NewDrawRecord(models.Lotto649, 113000054, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), []int{3, 11, 19, 26, 38, 45}, 7)
	require.NoError(t, err)

	tests := []struct {
		name      string
		target    string
		fetcher   *fakeFetcher
		wantCode  int
		wantGame  string
		wantYear  int
		wantMonth time.Month
	}{
		{"current month", "/api/lotto649", &fakeFetcher{draws: []models.DrawRecord{d}}, http.StatusOK, "lotto649", 2024, time.June},
		{"explicit month", "/api/lotto649?year=2024&month=05", &fakeFetcher{draws: []models.DrawRecord{d}}, http.StatusOK, "lotto649", 2024, time.May},
		{"super lotto", "/api/super_lotto?year=2023&month=12", &fakeFetcher{draws: []models.DrawRecord{d}}, http.StatusOK, "superlotto638", 2023, time.December},
		{"daily cash", "/api/daily_cash", &fakeFetcher{draws: []models.DrawRecord{d}}, http.StatusOK, "daily539", 2024, time.June},
		{"no draws", "/api/lotto649?year=2024&month=1", &fakeFetcher{}, http.StatusNotFound, "lotto649", 2024, time.January},
		{"fetch failure", "/api/daily_cash", &fakeFetcher{err: errors.New("timeout")}, http.StatusInternalServerError, "daily539", 2024, time.June},
		{"year without month", "/api/lotto649?year=2024", &fakeFetcher{}, http.StatusBadRequest, "", 0, 0},
		{"month out of range", "/api/lotto649?year=2024&month=13", &fakeFetcher{}, http.StatusBadRequest, "", 0, 0},
		{"non numeric year", "/api/lotto649?year=abc&month=1", &fakeFetcher{}, http.StatusBadRequest, "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(tt.fetcher, &fakePredictor{result: successResult}, nil)
			rec := do(t, h, http.MethodGet, tt.target, nil)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantGame, tt.fetcher.game.ID)
			assert.Equal(t, tt.wantYear, tt.fetcher.year)
			assert.Equal(t, tt.wantMonth, tt.fetcher.month)

			switch tt.wantCode {
			case http.StatusOK:
				var draws []models.DrawRecord
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draws))
				assert.Len(t, draws, 1)
			case http.StatusNotFound:
				assert.Equal(t, msgNoData, decodeDetail(t, rec))
			case http.StatusInternalServerError:
				assert.Contains(t, decodeDetail(t, rec), msgFetchFailed)
			}
		})
	}
}

func TestPredictCaches(t *testing.T) {
	p := &fakePredictor{result: successResult}
	h := newTestHandler(&fakeFetcher{}, p, nil)

	first := do(t, h, http.MethodGet, "/api/lotto649/predict", nil)
	second := do(t, h, http.MethodGet, "/api/lotto649/predict", nil)

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestPredictDoesNotCacheFailures(t *testing.T) {
	tests := []struct {
		name   string
		result func(int32) *models.AnalysisResult
	}{
		{"error status", func(n int32) *models.AnalysisResult {
			return &models.AnalysisResult{ID: "x", Status: models.StatusError, Error: "無法取得大樂透歷史資料", CreatedAt: time.Now()}
		}},
		{"no sets", func(n int32) *models.AnalysisResult {
			res := successResult(n)
			res.RecommendedSets = []models.RecommendedSet{}
			res.Notice = "AI 預測服務暫時無法使用"
			return res
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePredictor{result: tt.result}
			h := newTestHandler(&fakeFetcher{}, p, nil)

			rec := do(t, h, http.MethodGet, "/api/lotto649/predict", nil)
			do(t, h, http.MethodGet, "/api/lotto649/predict", nil)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
		})
	}
}

func TestPredictSharesInflightRun(t *testing.T) {
	p := &fakePredictor{result: successResult, block: make(chan struct{})}
	h := NewHandler(&fakeFetcher{}, p, nil, Options{})

	var wg sync.WaitGroup
	codes := make([]int, 3)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = do(t, h, http.MethodGet, "/api/lotto649/predict", nil).Code
		}()
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.calls) == 1 }, time.Second, time.Millisecond)
	// Give the other requests time to join before releasing the run.
	time.Sleep(50 * time.Millisecond)
	close(p.block)
	wg.Wait()

	for _, c := range codes {
		assert.Equal(t, http.StatusOK, c)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestPredictions(t *testing.T) {
	hist := &fakeHistory{results: map[string]*models.AnalysisResult{"pred-1": successResult(1)}}
	h := newTestHandler(&fakeFetcher{}, &fakePredictor{result: successResult}, hist)

	rec := do(t, h, http.MethodGet, "/api/predictions/pred-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "pred-1", got.ID)

	rec = do(t, h, http.MethodGet, "/api/predictions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/predictions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultHistoryLimit, hist.limit)

	do(t, h, http.MethodGet, "/api/predictions?limit=1000", nil)
	assert.Equal(t, MaxHistoryLimit, hist.limit)

	rec = do(t, h, http.MethodGet, "/api/predictions?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hist.err = errors.New("disk I/O error")
	rec = do(t, h, http.MethodGet, "/api/predictions", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPredictionsDisabled(t *testing.T) {
	h := newTestHandler(&fakeFetcher{}, &fakePredictor{result: successResult}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/predictions", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/predictions/x", nil).Code)
}

func TestCORS(t *testing.T) {
	h := newTestHandler(&fakeFetcher{}, &fakePredictor{result: successResult}, nil)

	rec := do(t, h, http.MethodGet, "/health", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(t, h, http.MethodGet, "/health", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/api/lotto649/predict", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestCORSWildcard(t *testing.T) {
	h := CORS([]string{"*"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := do(t, h, http.MethodGet, "/", map[string]string{"Origin": "http://anything.example"})
	assert.Equal(t, "http://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		year, month string
		wantYear    int
		wantMonth   time.Month
		wantErr     bool
	}{
		{"", "", 2024, time.June, false},
		{"2024", "5", 2024, time.May, false},
		{"2024", "05", 2024, time.May, false},
		{"2024", "", 0, 0, true},
		{"", "5", 0, 0, true},
		{"2024", "0", 0, 0, true},
		{"0", "5", 0, 0, true},
		{"twenty", "5", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.year+"-"+tt.month, func(t *testing.T) {
			y, m, err := parseYearMonth(tt.year, tt.month, fixedNow)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, y)
			assert.Equal(t, tt.wantMonth, m)
		})
	}
}
