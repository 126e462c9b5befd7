// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citecheck/internal/audit"
	"github.com/pdiddy/citecheck/internal/reconcile"
	"github.com/pdiddy/citecheck/internal/source"
	"github.com/pdiddy/citecheck/pkg/types"
)

type echoAdapter struct{}

func (echoAdapter) Name() types.SourceName { return types.SourceCrossref }

func (echoAdapter) Query(_ context.Context, q source.Query) iter.Seq2[types.CandidateRecord, error] {
	return func(yield func(types.CandidateRecord, error) bool) {
		yield(types.CandidateRecord{Source: types.SourceCrossref, Title: q.Title, Year: q.Year}, nil)
	}
}

func newTestServer(t *testing.T, maxCitations int) *httptest.Server {
	t.Helper()
	e := reconcile.New([]source.Adapter{echoAdapter{}}, nil, types.DefaultMatchConfig(), reconcile.Options{})
	a := audit.New(e, nil, types.RunConfig{Workers: 2, Timeout: 10 * time.Second}, nil)
	ts := httptest.NewServer(New(a, types.ServerConfig{MaxCitations: maxCitations}).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 0)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got["ok"])
}

func TestCheckAndLastReport(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/report.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, ts.URL+"/check", `{"citations": [
		{"title": "Attention Is All You Need", "year": 2017},
		{"authors": ["Nobody"]}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var run types.RunResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	require.Len(t, run.Results, 2)
	assert.Equal(t, types.StatusVerified, run.Results[0].Verdict.Status)
	assert.Equal(t, types.StatusMalformed, run.Results[1].Verdict.Status)
	assert.Equal(t, 2, run.Summary.Total)

	resp2, err := http.Get(ts.URL + "/report.json")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var last types.RunResult
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&last))
	assert.Equal(t, run.RunID, last.RunID)
}

func TestCheckTableFormat(t *testing.T) {
	ts := newTestServer(t, 0)
	resp := post(t, ts.URL+"/check?format=table", `{"citations": [{"title": "Attention Is All You Need"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "1 citations: 1 verified")
}

func TestCheckRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{name: "invalid json", path: "/check", body: `{"citations": [`, code: http.StatusBadRequest},
		{name: "empty body", path: "/check", body: ``, code: http.StatusBadRequest},
		{name: "no citations", path: "/check", body: `{"citations": []}`, code: http.StatusBadRequest},
		{name: "bad timeout", path: "/check?timeout=soon", body: `{"citations": [{"title": "A"}]}`, code: http.StatusBadRequest},
		{
			name: "too many citations",
			path: "/check",
			body: `{"citations": [{"title": "A"}, {"title": "B"}, {"title": "C"}]}`,
			code: http.StatusRequestEntityTooLarge,
		},
	}
	ts := newTestServer(t, 2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+tt.path, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
			var got map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.NotEmpty(t, got["error"])
		})
	}
}
