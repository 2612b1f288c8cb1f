package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGraphCmd_PrintsServerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/graph", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"nodes":["a","b"]}`))
	}))
	defer srv.Close()

	cli := &CLI{Host: srv.URL, Timeout: time.Second}
	require.NoError(t, (&graphCmd{}).Run(srv.Client(), cli))
}

func TestReloadCmd_PostsFileAndReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/config", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad config"}`))
	}))
	defer srv.Close()

	f := t.TempDir() + "/cfg.json"
	require.NoError(t, os.WriteFile(f, []byte(`{}`), 0o644))

	cli := &CLI{Host: srv.URL, Timeout: time.Second}
	err := (&reloadCmd{ConfigJSON: f}).Run(srv.Client(), cli)
	require.Error(t, err)
}
