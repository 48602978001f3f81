package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"webnorm/internal/auth"
	"webnorm/internal/calc/norm"
	"webnorm/internal/config"
	"webnorm/internal/geochem"
	"webnorm/internal/runs"
)

const upload = `Sample,SiO2,TiO2,Al2O3,Fe2O3,FeO,MnO,MgO,CaO,Na2O,K2O,P2O5
BAS-1,49.2,1.8,15.1,2.5,8.1,0.17,7.3,10.4,2.9,0.6,0.25
`

type stubEngine struct{}

func (stubEngine) Norm(ctx context.Context, t *geochem.Table, opts norm.Options) (*geochem.Table, error) {
	out := geochem.NewTable([]string{"quartz", "albite", "anorthite", "diopside"})
	for range t.Rows {
		out.Rows = append(out.Rows, []string{"40", "35", "26", "3"})
	}
	return out, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	conf := &config.Config{
		SumThreshold:  90,
		SumLimit:      100.1,
		RateLimit:     100,
		RateBurst:     100,
		EngineTimeout: time.Second,
	}
	router := mux.NewRouter()
	HandleList(router, deps{
		conf:   conf,
		log:    zap.NewNop(),
		engine: stubEngine{},
		runs:   runs.NewMemoryRepository(),
		links:  auth.NewLinkSigner([]byte("test"), time.Hour),
	})
	return CORS(router)
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "samples.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(upload))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHealthAndCORS(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/norms", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPreviewThenCalculateThenDownload(t *testing.T) {
	srv := newTestServer(t)

	body, ct := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/samples/preview", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview geochem.PreviewResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&preview))
	assert.Zero(t, preview.Warning)

	body, ct = multipartBody(t, map[string]string{"fe_method": "Le Maitre", "rock_type": "Volcanic"})
	req = httptest.NewRequest(http.MethodPost, "/api/norms", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res norm.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.InDelta(t, 101.0, res.Table.Float(0, geochem.SumColumn), 1e-9, "diopside is not part of the total")
	assert.Equal(t, []int{0}, res.OverSum)
	require.NotEmpty(t, res.Downloads["csv"])

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, res.Downloads["csv"], nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "quartz,albite,anorthite,diopside,Sum\n40,35,26,3,101\n", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []runs.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Le Maitre (volcanic)", list[0].FeParams)
}

func TestTemplateRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/template", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/template/link", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "template.csv")
}

func TestNewEngine(t *testing.T) {
	_, ok := newEngine(&config.Config{Engine: "http", EngineURL: "http://norm"}).(*norm.HTTPEngine)
	assert.True(t, ok)
	_, ok = newEngine(&config.Config{Engine: "exec"}).(*norm.ExecEngine)
	assert.True(t, ok)
}
