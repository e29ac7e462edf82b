package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/netx"
	"github.com/dmitrijs2005/eventsnap/internal/server/auth"
	"github.com/dmitrijs2005/eventsnap/internal/server/downloads"
	"github.com/dmitrijs2005/eventsnap/internal/server/jobs"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/ratelimit"
)

var testSecret = []byte("test-secret")

type fakeBulk struct {
	gotClient string
	gotReq    downloads.BulkRequest
	res       *downloads.BulkResult
	err       error
}

func (f *fakeBulk) Build(ctx context.Context, client string, req downloads.BulkRequest) (*downloads.BulkResult, error) {
	f.gotClient, f.gotReq = client, req
	return f.res, f.err
}

type fakeJobs struct {
	jobs     map[string]*models.Job
	submitEv string
	swept    jobs.SweepResult
	sweepErr error
}

func (f *fakeJobs) Submit(ctx context.Context, eventID string) (*models.Job, error) {
	f.submitEv = eventID
	if eventID == "missing" {
		return nil, common.ErrNotFound
	}
	return &models.Job{ID: "job-1", EventID: eventID, Status: models.JobPending, Archives: []models.ArchiveRef{}}, nil
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*models.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) Sweep(ctx context.Context) (jobs.SweepResult, error) {
	return f.swept, f.sweepErr
}

type fakeResolver struct {
	gotClient, gotEvent, gotMedia string
	res                           *downloads.Resolution
	err                           error
}

func (f *fakeResolver) Resolve(ctx context.Context, client, eventID, mediaID string) (*downloads.Resolution, error) {
	f.gotClient, f.gotEvent, f.gotMedia = client, eventID, mediaID
	return f.res, f.err
}

type testEnv struct {
	bulk     *fakeBulk
	jobs     *fakeJobs
	resolver *fakeResolver
	srv      http.Handler
}

var testProxies = mustProxies("10.0.0.0/8")

func mustProxies(entries ...string) *netx.Proxies {
	p, err := netx.ParseProxies(entries)
	if err != nil {
		panic(err)
	}
	return p
}

func newEnv() *testEnv {
	e := &testEnv{
		bulk:     &fakeBulk{},
		jobs:     &fakeJobs{jobs: map[string]*models.Job{}},
		resolver: &fakeResolver{},
	}
	e.srv = NewRouter(Services{Bulk: e.bulk, Jobs: e.jobs, Resolver: e.resolver},
		Options{Secret: testSecret, TrustedProxies: testProxies}, logging.Nop())
	return e
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCreateArchive_Success(t *testing.T) {
	e := newEnv()
	e.bulk.res = &downloads.BulkResult{FileName: "Summer Party.zip", Data: []byte("PK-zip"), Included: 3, Failed: 1}

	body := `{"filename":"Summer Party","items":[{"id":"1","url":"https://media.example/a.jpg","title":"a.jpg"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/archives", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.7:51234"
	rec := e.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Summer Party.zip"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "6", rec.Header().Get("Content-Length"))
	assert.Equal(t, "3", rec.Header().Get("X-Archive-Included-Count"))
	assert.Equal(t, "1", rec.Header().Get("X-Archive-Failed-Count"))
	assert.Equal(t, "PK-zip", rec.Body.String())

	assert.Equal(t, "ip:10.0.0.7", e.bulk.gotClient)
	assert.Equal(t, "Summer Party", e.bulk.gotReq.FileName)
	require.Len(t, e.bulk.gotReq.Items, 1)
	assert.Equal(t, "a.jpg", e.bulk.gotReq.Items[0].Title)
}

func TestCreateArchive_MalformedBody(t *testing.T) {
	e := newEnv()
	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/v1/archives", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Error)
}

func TestCreateArchive_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: items is empty", common.ErrValidation), http.StatusBadRequest, "validation_error"},
		{"too large", fmt.Errorf("archive: %w", common.ErrTotalSizeExceeded), http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"nothing fetched", common.ErrNoSuccessfulItems, http.StatusUnprocessableEntity, "no_successful_items"},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			e.bulk.err = tt.err
			rec := e.do(httptest.NewRequest(http.MethodPost, "/api/v1/archives", strings.NewReader(`{}`)))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestCreateArchive_RateLimited(t *testing.T) {
	e := newEnv()
	e.bulk.err = &ratelimit.ExceededError{Limit: 100, RetryAfter: 90*time.Second + 300*time.Millisecond}

	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/v1/archives", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "91", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Error)
}

func TestIdentity(t *testing.T) {
	token, err := auth.GenerateToken("u-42", testSecret, time.Minute)
	require.NoError(t, err)
	otherToken, err := auth.GenerateToken("u-42", []byte("other"), time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     map[string]string
		remote     string
		wantStatus int
		wantClient string
	}{
		{"bearer token", map[string]string{"Authorization": "Bearer " + token}, "10.0.0.1:1", http.StatusOK, "user:u-42"},
		{"forwarded by trusted proxy", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "10.0.0.1:1", http.StatusOK, "ip:203.0.113.9"},
		{"forwarded by direct caller", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "192.0.2.4:5555", http.StatusOK, "ip:192.0.2.4"},
		{"peer address", nil, "192.0.2.4:5555", http.StatusOK, "ip:192.0.2.4"},
		{"other scheme ignored", map[string]string{"Authorization": "Basic abc"}, "192.0.2.4:5555", http.StatusOK, "ip:192.0.2.4"},
		{"bad token", map[string]string{"Authorization": "Bearer " + otherToken}, "10.0.0.1:1", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			e.resolver.res = &downloads.Resolution{Mode: downloads.ModeSignedURL, URL: "https://signed"}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/ev/media/m/download", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := e.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantClient, e.resolver.gotClient)
		})
	}
}

// limitedResolver charges every call against a real limiter.
type limitedResolver struct {
	limiter *ratelimit.Limiter
}

func (l *limitedResolver) Resolve(ctx context.Context, client, eventID, mediaID string) (*downloads.Resolution, error) {
	if d := l.limiter.Allow(client); !d.Allowed {
		return nil, &ratelimit.ExceededError{Limit: d.Limit, RetryAfter: d.RetryAfter}
	}
	return &downloads.Resolution{Mode: downloads.ModeSignedURL, URL: "https://signed"}, nil
}

func TestIdentity_SpoofedForwardedForSharesPeerBucket(t *testing.T) {
	srv := NewRouter(Services{Resolver: &limitedResolver{limiter: ratelimit.New("downloads", 1)}},
		Options{Secret: testSecret, TrustedProxies: testProxies}, logging.Nop())

	var codes []int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/ev/media/m/download", nil)
		req.RemoteAddr = "198.51.100.20:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests,
		http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestDownloadMedia_SignedURL(t *testing.T) {
	e := newEnv()
	exp := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	e.resolver.res = &downloads.Resolution{Mode: downloads.ModeSignedURL, URL: "https://signed.example/x", ExpiresAt: exp}

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/events/ev-1/media/m-9/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ev-1", e.resolver.gotEvent)
	assert.Equal(t, "m-9", e.resolver.gotMedia)
	assert.JSONEq(t, `{"url":"https://signed.example/x","isWatermarked":false,"expiresAt":"2024-07-01T10:00:00Z"}`, rec.Body.String())
}

func TestDownloadMedia_Rewritten(t *testing.T) {
	e := newEnv()
	e.resolver.res = &downloads.Resolution{Mode: downloads.ModeRewritten, Data: []byte("jpeg"), ContentType: "image/jpeg", FileName: "IMG 1.jpg"}

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/events/ev-1/media/m-9/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="IMG 1.jpg"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "jpeg", rec.Body.String())
}

func TestDownloadMedia_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrWatermarkUnsupported, http.StatusUnsupportedMediaType},
		{fmt.Errorf("read: %w", common.ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("open: %w: timeout", common.ErrStorage), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			e := newEnv()
			e.resolver.err = tt.err
			rec := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/events/ev/media/m/download", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestJobs(t *testing.T) {
	e := newEnv()
	e.jobs.jobs["job-7"] = &models.Job{ID: "job-7", EventID: "ev-1", Status: models.JobComplete, Progress: 100,
		Archives: []models.ArchiveRef{{Key: "k", FileName: "a-part-1.zip", URL: "https://signed/a"}}}

	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/v1/events/ev-1/download-jobs", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "ev-1", e.jobs.submitEv)
	assert.Equal(t, "/api/v1/download-jobs/job-1", rec.Header().Get("Location"))
	var created map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, []any{}, created["archives"])

	rec = e.do(httptest.NewRequest(http.MethodPost, "/api/v1/events/missing/download-jobs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/download-jobs/job-7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.JobComplete, got.Status)
	assert.Equal(t, "https://signed/a", got.Archives[0].URL)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/download-jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweep(t *testing.T) {
	e := newEnv()
	e.jobs.swept = jobs.SweepResult{Jobs: 2, Objects: 5}

	rec := e.do(httptest.NewRequest(http.MethodPost, "/internal/maintenance/sweep", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":2,"objects":5}`, rec.Body.String())

	e.jobs.sweepErr = fmt.Errorf("job x: %w: denied", common.ErrStorage)
	rec = e.do(httptest.NewRequest(http.MethodPost, "/internal/maintenance/sweep", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv()

	rec := e.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = e.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	b, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(b), "eventsnap_http_requests_total")
}

func TestRequestID(t *testing.T) {
	e := newEnv()

	rec := e.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = e.do(req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	e := newEnv()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
