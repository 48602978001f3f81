package norm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webnorm/internal/auth"
	"webnorm/internal/geochem"
	"webnorm/internal/runs"
)

func calcRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/norms", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCalcHandler(t *testing.T) {
	eng := &fakeEngine{}
	repo := runs.NewMemoryRepository()
	h := &Handler{
		Engine: eng,
		Runs:   repo,
		Links:  auth.NewLinkSigner([]byte("secret"), time.Hour),
	}

	rec := httptest.NewRecorder()
	h.Calc(rec, calcRequest(t, "basalt.csv", analysesCSV, map[string]string{
		"fe_method":   "Constant",
		"fe_constant": "0.8",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "basalt.csv", res.Filename)
	assert.Equal(t, 0.8, res.Params.Constant)
	assert.Equal(t, DefaultSumLimit, res.SumLimit)
	assert.Empty(t, res.OverSum)
	assert.InDelta(t, 60.0, res.Table.Float(1, geochem.SumColumn), 1e-9)
	assert.InDelta(t, 8.0, eng.got.Float(0, "FeO"), 1e-9)

	require.True(t, strings.HasPrefix(res.Link, `<a href="data:file/csv;base64,`))
	assert.Contains(t, res.Link, `download="normative_mineralogy.csv"`)

	require.NotZero(t, res.RunID)
	assert.Contains(t, res.Downloads["pdf"], "format=pdf")

	run, err := repo.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "basalt.csv", run.Source)
	assert.Equal(t, "Constant", run.FeMethod)
	assert.Equal(t, 2, run.Samples)

	encoded := strings.TrimSuffix(strings.SplitN(res.Link, "base64,", 2)[1], `" download="normative_mineralogy.csv">Download results as csv file</a>`)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, string(run.ResultCSV), string(decoded))
}

func TestCalcHandlerFlagsOverSum(t *testing.T) {
	h := &Handler{Engine: &fakeEngine{}, SumLimit: 50}

	rec := httptest.NewRecorder()
	h.Calc(rec, calcRequest(t, "basalt.csv", analysesCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, []int{0, 1}, res.OverSum)
	assert.Zero(t, res.RunID, "no repository configured")
}

func TestCalcHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		file   string
		body   string
		fields map[string]string
		engine *fakeEngine
		want   int
	}{
		{"no file", "", "", nil, &fakeEngine{}, http.StatusBadRequest},
		{"bad format", "basalt.pdf", analysesCSV, nil, &fakeEngine{}, http.StatusBadRequest},
		{"bad method", "basalt.csv", analysesCSV, map[string]string{"fe_method": "Irvine"}, &fakeEngine{}, http.StatusBadRequest},
		{"bad constant", "basalt.csv", analysesCSV, map[string]string{"fe_method": "Constant", "fe_constant": "x"}, &fakeEngine{}, http.StatusBadRequest},
		{"unknown column", "basalt.csv", analysesCSV, map[string]string{"fe_method": "Specified", "fe_column": "nope"}, &fakeEngine{}, http.StatusBadRequest},
		{"text factor column", "basalt.csv", analysesCSV, map[string]string{"fe_method": "Specified", "fe_column": "Sample"}, &fakeEngine{}, http.StatusBadRequest},
		{"missing oxides", "basalt.csv", "SiO2\n50\n", nil, &fakeEngine{}, http.StatusBadRequest},
		{"engine down", "basalt.csv", analysesCSV, nil, &fakeEngine{err: ErrEngine}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &Handler{Engine: tc.engine}
			rec := httptest.NewRecorder()
			h.Calc(rec, calcRequest(t, tc.file, tc.body, tc.fields))
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}
