package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/biomatch-server/internal/cache"
	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/metrics"
	"github.com/biomatch-server/internal/review"
	"github.com/biomatch-server/internal/service"
)

type recordingNotifier struct {
	err  error
	sent []domain.ContactRequest
}

func (n *recordingNotifier) ContactDonor(ctx context.Context, req domain.ContactRequest) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, req)
	return nil
}

type testEnv struct {
	server   *Server
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	cfg := &domain.Config{
		Server: domain.ServerConfig{RequestTimeout: 5 * time.Second, MaxUploadBytes: 1 << 20},
		Matching: domain.MatchingConfig{
			Models:           domain.DefaultModels(),
			DefaultCount:     5,
			DefaultMoreCount: 3,
			MaxCount:         20,
			Seed:             7,
		},
	}

	store, err := review.NewSQLiteStore(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	engine := service.NewEngine(cfg.Matching, logger, service.WithObserver(m))
	notifier := &recordingNotifier{}

	srv := NewServer(cfg, Dependencies{
		Engine:   engine,
		Store:    cache.NewStore(100, time.Hour, logger),
		Reviews:  review.NewService(store, logger),
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	})
	return &testEnv{server: srv, notifier: notifier, metrics: m}
}

func (e *testEnv) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(method, path string, body interface{}) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	return e.do(method, path, raw, "application/json")
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "sample.fastq")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func (e *testEnv) ingest(t *testing.T, fields map[string]string) *domain.BioSample {
	t.Helper()
	body, ct := multipartBody(t, fields, []byte("ACGT"))
	w := e.do(http.MethodPost, "/api/v1/samples", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sample domain.BioSample
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sample))
	return &sample
}

type matchesResponse struct {
	SampleID string                `json:"sample_id"`
	Count    int                   `json:"count"`
	Results  []*domain.MatchResult `json:"results"`
}

func (e *testEnv) findMatches(t *testing.T, path string) matchesResponse {
	t.Helper()
	w := e.do(http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp matchesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.MatchError {
	t.Helper()
	var me domain.MatchError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	return me
}

func TestHealthAndModels(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	w = env.do(http.MethodGet, "/api/v1/models", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Models []domain.ModelDescriptor `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.DefaultModels(), body.Models)
}

func TestIngest(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Creates sample with upload identity", func(t *testing.T) {
		sample := env.ingest(t, map[string]string{
			"sample_type":     "Blood Cells",
			"blood_type":      "O-",
			"hla_typing":      "A*01:01, B*08:01",
			"genetic_markers": "BRCA1",
			"age":             "34",
			"urgency":         "HIGH",
			"subject_id":      "patient-9",
		})

		assert.Equal(t, domain.BloodCells, sample.SampleType)
		assert.Equal(t, "O-", sample.BloodType)
		assert.Equal(t, []string{"A*01:01", "B*08:01"}, sample.HLATyping)
		assert.Equal(t, 34, sample.Age)
		assert.Equal(t, domain.UrgencyHigh, sample.Urgency)
		assert.Equal(t, "patient-9", sample.SubjectID)
		assert.Equal(t, "sample.fastq", sample.Upload.Filename)
		assert.Equal(t, int64(4), sample.Upload.Size)
		sum := sha256.Sum256([]byte("ACGT"))
		assert.Equal(t, hex.EncodeToString(sum[:]), sample.Upload.SHA256)

		w := env.do(http.MethodGet, "/api/v1/samples/"+sample.ID, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
		code   string
	}{
		{"Unknown sample type", map[string]string{"sample_type": "urine"}, []byte("x"), domain.ErrCodeInvalidSampleType},
		{"Missing file", map[string]string{"sample_type": "saliva"}, nil, domain.ErrCodeInvalidArgument},
		{"Bad blood type", map[string]string{"sample_type": "saliva", "blood_type": "C+"}, []byte("x"), domain.ErrCodeInvalidArgument},
		{"Bad age", map[string]string{"sample_type": "saliva", "age": "old"}, []byte("x"), domain.ErrCodeInvalidArgument},
		{"Bad urgency", map[string]string{"sample_type": "saliva", "urgency": "asap"}, []byte("x"), domain.ErrCodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.file)
			w := env.do(http.MethodPost, "/api/v1/samples", body, ct)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}

	t.Run("Upload too large", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"sample_type": "saliva"}, bytes.Repeat([]byte("A"), 2<<20))
		w := env.do(http.MethodPost, "/api/v1/samples", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unknown sample id", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/samples/sample_nope", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, domain.ErrCodeNotFound, decodeError(t, w).Code)
	})
}

func TestFindMatches(t *testing.T) {
	env := newTestEnv(t)
	sample := env.ingest(t, map[string]string{"sample_type": "bone-marrow", "blood_type": "A+"})

	first := env.findMatches(t, "/api/v1/samples/"+sample.ID+"/matches")
	assert.Equal(t, 5, first.Count)
	for i := 1; i < len(first.Results); i++ {
		assert.GreaterOrEqual(t, first.Results[i-1].CompositeScore, first.Results[i].CompositeScore)
	}
	assert.Equal(t, sample.SubjectID, first.Results[0].RecipientID)

	more := env.findMatches(t, "/api/v1/samples/"+sample.ID+"/matches/more")
	assert.Equal(t, 3, more.Count)

	custom := env.findMatches(t, "/api/v1/samples/"+sample.ID+"/matches?count=2")
	assert.Equal(t, 2, custom.Count)

	seen := map[string]bool{}
	for _, r := range append(append(first.Results, more.Results...), custom.Results...) {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}

	w := env.do(http.MethodGet, "/api/v1/matches/"+more.Results[0].ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.MatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, more.Results[0].DonorID, got.DonorID)

	for _, q := range []string{"0", "21", "-1", "five"} {
		w := env.do(http.MethodPost, "/api/v1/samples/"+sample.ID+"/matches?count="+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "count=%s", q)
	}

	w = env.do(http.MethodPost, "/api/v1/samples/sample_missing/matches", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/matches/match_missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReport(t *testing.T) {
	env := newTestEnv(t)
	sample := env.ingest(t, map[string]string{"sample_type": "saliva"})
	env.findMatches(t, "/api/v1/samples/"+sample.ID+"/matches?count=4")
	env.findMatches(t, "/api/v1/samples/"+sample.ID+"/matches/more?count=2")

	w := env.do(http.MethodGet, "/api/v1/samples/"+sample.ID+"/report", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".json")

	var report service.MatchReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 6, report.Summary.Count)
	assert.Equal(t, sample.ID, report.Sample.ID)

	w = env.do(http.MethodGet, "/api/v1/samples/"+sample.ID+"/report?format=yaml", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Contains(t, decoded, "summary")

	w = env.do(http.MethodGet, "/api/v1/samples/"+sample.ID+"/report?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContactDonor(t *testing.T) {
	env := newTestEnv(t)
	sample := env.ingest(t, map[string]string{"sample_type": "stem-cells", "subject_id": "patient-1"})
	resp := env.findMatches(t, "/api/v1/samples/"+sample.ID+"/matches?count=1")
	matchID := resp.Results[0].ID

	w := env.doJSON(http.MethodPost, "/api/v1/matches/"+matchID+"/contact", map[string]string{"message": "Please get in touch"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, resp.Results[0].DonorID, env.notifier.sent[0].DonorID)
	assert.Equal(t, "patient-1", env.notifier.sent[0].RecipientID)
	assert.Equal(t, "Please get in touch", env.notifier.sent[0].Message)

	t.Run("Without body", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/matches/"+matchID+"/contact", nil, "")
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("Malformed body", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/matches/"+matchID+"/contact", []byte("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Notifier unavailable", func(t *testing.T) {
		env.notifier.err = errors.Join(domain.ErrNotifierUnavailable)
		defer func() { env.notifier.err = nil }()

		w := env.do(http.MethodPost, "/api/v1/matches/"+matchID+"/contact", nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, domain.ErrCodeNotifierUnavailable, decodeError(t, w).Code)
	})

	t.Run("Unknown match", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/matches/match_nope/contact", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReviewWorkflow(t *testing.T) {
	env := newTestEnv(t)
	sample := env.ingest(t, map[string]string{"sample_type": "bone-marrow", "urgency": "high"})
	resp := env.findMatches(t, "/api/v1/samples/"+sample.ID+"/matches?count=3")

	submit := func(matchID string) domain.ReviewRequest {
		w := env.doJSON(http.MethodPost, "/api/v1/matches/"+matchID+"/review", map[string]string{"notes": "please review"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var req domain.ReviewRequest
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &req))
		return req
	}

	first := submit(resp.Results[0].ID)
	assert.Equal(t, domain.ReviewPending, first.Status)
	assert.Equal(t, domain.UrgencyHigh, first.Urgency)
	assert.Equal(t, "please review", first.PatientNotes)
	assert.Equal(t, first.ID, submit(resp.Results[0].ID).ID)
	second := submit(resp.Results[1].ID)
	third := submit(resp.Results[2].ID)

	w := env.doJSON(http.MethodPost, "/api/v1/reviews/"+first.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var approved domain.ReviewRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &approved))
	assert.Equal(t, domain.ReviewApproved, approved.Status)
	assert.Equal(t, review.DefaultApprovalNotes, approved.DoctorNotes)

	w = env.doJSON(http.MethodPost, "/api/v1/reviews/"+first.ID+"/decline", map[string]string{"notes": "no"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidTransition, decodeError(t, w).Code)

	w = env.doJSON(http.MethodPost, "/api/v1/reviews/"+second.ID+"/decline", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.doJSON(http.MethodPost, "/api/v1/reviews/"+second.ID+"/decline", map[string]string{"notes": "HLA mismatch"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/reviews/"+third.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/reviews/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var counts domain.ReviewCounts
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, domain.ReviewCounts{Pending: 1, Approved: 1, Declined: 1}, counts)

	w = env.do(http.MethodGet, "/api/v1/reviews?status=pending", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Reviews []domain.ReviewRequest `json:"reviews"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, third.ID, list.Reviews[0].ID)

	w = env.do(http.MethodGet, "/api/v1/reviews?status=lost", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, "/api/v1/reviews?limit=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, "/api/v1/reviews/review_nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamMatches(t *testing.T) {
	env := newTestEnv(t)
	sample := env.ingest(t, map[string]string{"sample_type": "peripheral-blood"})

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/samples/" + sample.ID + "/matches/stream?count=4"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var results []*domain.MatchResult
	for {
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Done {
			assert.Equal(t, 4, msg.Total)
			break
		}
		results = append(results, msg.Result)
	}
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].CompositeScore, results[i].CompositeScore)
	}

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))

	// streamed results are retained like any others
	w := env.do(http.MethodGet, "/api/v1/matches/"+results[0].ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	t.Run("Validation happens before upgrade", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(strings.Replace(wsURL, "count=4", "count=0", 1), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestBatchMatches(t *testing.T) {
	env := newTestEnv(t)
	a := env.ingest(t, map[string]string{"sample_type": "saliva"})
	b := env.ingest(t, map[string]string{"sample_type": "bone-marrow", "urgency": "high"})

	t.Run("Matches every sample", func(t *testing.T) {
		w := env.doJSON(http.MethodPost, "/api/v1/batch/matches", map[string]interface{}{
			"sample_ids": []string{a.ID, b.ID, a.ID},
			"count":      2,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Samples int                              `json:"samples"`
			Count   int                              `json:"count"`
			Results map[string][]*domain.MatchResult `json:"results"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Samples)
		assert.Len(t, resp.Results[a.ID], 2)
		assert.Len(t, resp.Results[b.ID], 2)

		id := resp.Results[b.ID][0].ID
		w = env.do(http.MethodGet, "/api/v1/matches/"+id, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Default count", func(t *testing.T) {
		w := env.doJSON(http.MethodPost, "/api/v1/batch/matches", map[string]interface{}{"sample_ids": []string{a.ID}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":5`)
	})

	t.Run("Unknown sample", func(t *testing.T) {
		w := env.doJSON(http.MethodPost, "/api/v1/batch/matches", map[string]interface{}{"sample_ids": []string{a.ID, "sample_missing"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Invalid requests", func(t *testing.T) {
		w := env.doJSON(http.MethodPost, "/api/v1/batch/matches", map[string]interface{}{"sample_ids": []string{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.doJSON(http.MethodPost, "/api/v1/batch/matches", map[string]interface{}{"sample_ids": []string{a.ID}, "count": 21})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(http.MethodPost, "/api/v1/batch/matches", []byte("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, map[string]string{"sample_type": "saliva"})

	w := env.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `biomatch_samples_ingested_total{outcome="ok",sample_type="saliva"} 1`)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidSampleType, http.StatusBadRequest},
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrFeatureExtraction, http.StatusUnprocessableEntity},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrNotifierUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Error())
	}
}
