// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-sanction/internal/api"
	"loan-sanction/internal/common/config"
	"loan-sanction/internal/common/database"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/common/ratelimit"
	"loan-sanction/internal/features"
	"loan-sanction/internal/inference"
	"loan-sanction/internal/model"
	"loan-sanction/internal/models"
	"loan-sanction/pkg/artifact"
)

const artifactPath = "../../models/loan_rf_v1.json"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stack struct {
	server *httptest.Server
	engine *inference.Engine
}

func startStack(t *testing.T, src model.Source, limiter ratelimit.Limiter) *stack {
	t.Helper()
	log := logger.NewTestLogger(t)

	engine := inference.NewEngine(features.DefaultTable, log)
	_ = engine.Load(context.Background(), src)

	predictor := inference.NewPredictor(
		features.MustNewEncoder(features.DefaultTable),
		engine,
		inference.NewShaper(inference.DefaultPrecision),
		log,
	)

	router := api.Setup(api.Options{
		Service:         predictor,
		Model:           engine,
		EncodingVersion: features.DefaultTable.Version(),
		Limiter:         limiter,
		Logger:          log,
		RequestTimeout:  5 * time.Second,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &stack{server: srv, engine: engine}
}

func (s *stack) predict(t *testing.T, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case []byte:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	resp, err := http.Post(s.server.URL+"/predict", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestFullE2E_ShippedModel(t *testing.T) {
	s := startStack(t, model.NewFileSource(artifactPath), nil)
	require.True(t, s.engine.Ready())

	// 1. Form initial values
	resp, out := s.predict(t, models.DefaultApplication())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Y", out["status"])
	assert.Equal(t, 0.72, out["confidence"])
	assert.Equal(t, inference.MessageApproved, out["message"])
	assert.Equal(t, "1.0.0", resp.Header.Get(api.HeaderModelVersion))
	assert.Equal(t, "v1", resp.Header.Get(api.HeaderEncodingVersion))
	assert.NotEmpty(t, resp.Header.Get(api.HeaderRequestID))

	// 2. No credit history
	app := models.DefaultApplication()
	app.CreditHistory = 0
	resp, out = s.predict(t, app)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "N", out["status"])
	assert.Equal(t, 0.7, out["confidence"])
	assert.Equal(t, inference.MessageRejected, out["message"])

	// 3. Out of domain value never reaches the model
	resp, out = s.predict(t, []byte(`{"Gender":"Other","Married":"No","Dependents":"0","Education":"Graduate",
		"Self_Employed":"No","ApplicantIncome":5000,"CoapplicantIncome":0,"LoanAmount":150,
		"Loan_Amount_Term":0,"Credit_History":1,"Property_Area":"Urban"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := out["error"].(map[string]interface{})
	assert.Equal(t, "validation", errBody["kind"])
	fields := errBody["fields"].([]interface{})
	assert.Len(t, fields, 2)

	// 4. Health and readiness
	for _, path := range []string{"/health", "/ready"} {
		r, err := http.Get(s.server.URL + path)
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, http.StatusOK, r.StatusCode, path)
	}
}

func TestFullE2E_ConcurrentRequestsAgree(t *testing.T) {
	s := startStack(t, model.NewFileSource(artifactPath), nil)

	var wg sync.WaitGroup
	results := make([]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, out := s.predict(t, models.DefaultApplication())
			results[i], _ = out["confidence"].(float64)
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		assert.Equal(t, results[0], c)
	}
}

func TestFullE2E_MissingArtifactRefusesTraffic(t *testing.T) {
	s := startStack(t, model.NewFileSource("../../models/does-not-exist.json"), nil)
	require.False(t, s.engine.Ready())

	resp, out := s.predict(t, models.DefaultApplication())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "model_unavailable", out["error"].(map[string]interface{})["kind"])

	resp, out = s.predict(t, []byte(`{"Gender":"Other"}`))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "MODEL_UNAVAILABLE", out["error"].(map[string]interface{})["code"])

	r, err := http.Get(s.server.URL + "/ready")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, r.StatusCode)
}

func TestFullE2E_RateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	s := startStack(t, model.NewFileSource(artifactPath), limiter)

	for i := 0; i < 2; i++ {
		resp, _ := s.predict(t, models.DefaultApplication())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, out := s.predict(t, models.DefaultApplication())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", out["error"].(map[string]interface{})["kind"])
}

// ==========================
// Real services (E2E_SERVICES=1)
// ==========================

func TestFullE2E_Services(t *testing.T) {
	if os.Getenv("E2E_SERVICES") == "" {
		t.Skip("set E2E_SERVICES=1 with postgres and redis on localhost")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// --- PostgreSQL model registry ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	defer pg.Close()
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")

	_, err = pg.GetDB().ExecContext(ctx, `CREATE TABLE IF NOT EXISTS model_artifacts (
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		encoding_version TEXT NOT NULL,
		artifact JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (name, version)
	)`)
	require.NoError(t, err)

	doc, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	a, err := artifact.Parse(doc)
	require.NoError(t, err)
	a.Version = "e2e-" + time.Now().UTC().Format("20060102150405")
	doc, err = json.Marshal(a)
	require.NoError(t, err)
	require.NoError(t, model.Publish(ctx, pg.GetDB(), a, doc))

	// --- Redis rate limiter ---
	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")

	s := startStack(t,
		model.NewPostgresSource(pg.GetDB(), a.Name, a.Version),
		ratelimit.NewRedisLimiter(rdb.GetClient(), 100, time.Minute),
	)
	require.True(t, s.engine.Ready())

	resp, out := s.predict(t, models.DefaultApplication())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Y", out["status"])
	assert.Equal(t, a.Version, resp.Header.Get(api.HeaderModelVersion))
}
