package norm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mineralResponse answers every sample with quartz and a null cell, the way
// the engine serialises missing values.
func mineralResponse(req engineRequest) engineResponse {
	res := engineResponse{Columns: []string{"Sample", "quartz", "hematite", "FREE_DEFSIO2"}}
	idx := -1
	for i, c := range req.Columns {
		if c == "Sample" {
			idx = i
		}
	}
	for _, row := range req.Rows {
		name := ""
		if idx >= 0 {
			name = row[idx]
		}
		res.Rows = append(res.Rows, []any{name, 12.345, nil, 0.5})
	}
	return res
}

func TestHTTPEngine(t *testing.T) {
	var got engineRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cipw", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(mineralResponse(got))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL+"/", 5*time.Second)
	opts := Params{Method: "Middlemost"}.Options()
	out, err := eng.Norm(context.Background(), analyses(t), opts)
	require.NoError(t, err)

	assert.Equal(t, "Middlemost", got.Options.FeCorrection)
	assert.Equal(t, analyses(t).Columns, got.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "GRA-1", out.Rows[1][0])
	assert.InDelta(t, 12.345, out.Float(0, "quartz"), 1e-9)
	assert.Equal(t, "", out.Rows[0][2])
}

func TestHTTPEngineErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "KeyError: 'SiO2'", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewHTTPEngine(srv.URL, time.Second).Norm(context.Background(), analyses(t), Options{})
	require.ErrorIs(t, err, ErrEngine)
	assert.Contains(t, err.Error(), "KeyError")
}

func TestHTTPEngineRowMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(engineResponse{Columns: []string{"quartz"}, Rows: [][]any{{1.0}}})
	}))
	defer srv.Close()

	_, err := NewHTTPEngine(srv.URL, time.Second).Norm(context.Background(), analyses(t), Options{})
	assert.ErrorIs(t, err, ErrEngine)
}

func TestHTTPEngineReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(engineResponse{Error: "bad Fe_correction_mode"})
	}))
	defer srv.Close()

	_, err := NewHTTPEngine(srv.URL, time.Second).Norm(context.Background(), analyses(t), Options{})
	require.ErrorIs(t, err, ErrEngine)
	assert.Contains(t, err.Error(), "bad Fe_correction_mode")
}

func helperEngine(mode string) *ExecEngine {
	return &ExecEngine{
		Command: []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
		Env:     append(os.Environ(), "GO_WANT_HELPER_PROCESS="+mode),
	}
}

func TestExecEngine(t *testing.T) {
	out, err := helperEngine("ok").Norm(context.Background(), analyses(t), Options{Rounding: 3})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "BAS-1", out.Rows[0][0])
	assert.InDelta(t, 0.5, out.Float(1, FreeDefSiO2), 1e-9)
}

func TestExecEngineFailure(t *testing.T) {
	_, err := helperEngine("fail").Norm(context.Background(), analyses(t), Options{})
	require.ErrorIs(t, err, ErrEngine)
	assert.Contains(t, err.Error(), "pyrolite not installed")
}

func TestExecEngineGarbage(t *testing.T) {
	_, err := helperEngine("garbage").Norm(context.Background(), analyses(t), Options{})
	assert.ErrorIs(t, err, ErrEngine)
}

func TestScriptPathFallsBackToBinaryDir(t *testing.T) {
	exeDir := t.TempDir()
	script := filepath.Join(exeDir, DefaultScript)
	require.NoError(t, os.MkdirAll(filepath.Dir(script), 0o755))
	require.NoError(t, os.WriteFile(script, []byte("print()\n"), 0o644))

	// tests run in the package directory, which has no scripts/ folder
	assert.Equal(t, script, scriptPath(DefaultScript, exeDir))
	assert.Equal(t, DefaultScript, scriptPath(DefaultScript, ""))

	wd := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(wd, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(wd, DefaultScript), nil, 0o644))
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(wd))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	assert.Equal(t, DefaultScript, scriptPath(DefaultScript, exeDir))
}

func TestNewExecEngineDefaults(t *testing.T) {
	assert.Equal(t, DefaultCommand(), NewExecEngine("").Command)
	assert.Equal(t, []string{"/opt/norm/bin/python", "bridge.py"}, NewExecEngine("/opt/norm/bin/python bridge.py").Command)
}

// TestHelperProcess stands in for the norm bridge when run by helperEngine.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("GO_WANT_HELPER_PROCESS")
	if mode == "" {
		return
	}
	defer os.Exit(0)

	switch mode {
	case "fail":
		fmt.Fprintln(os.Stderr, "pyrolite not installed")
		os.Exit(1)
	case "garbage":
		fmt.Fprint(os.Stdout, "Traceback")
		return
	}

	var req engineRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if req.Options.Rounding != 3 {
		fmt.Fprintln(os.Stderr, "options not forwarded")
		os.Exit(1)
	}
	json.NewEncoder(os.Stdout).Encode(mineralResponse(req))
}

var _ Engine = (*HTTPEngine)(nil)
var _ Engine = (*ExecEngine)(nil)
