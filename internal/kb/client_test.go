package kb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/files", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer kb-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "llms-example-drill_bits.txt", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"id": "doc-123"})
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "kb-key"}, nil)
	require.NoError(t, err)

	id, err := c.UploadFile(context.Background(), "llms-example-drill_bits.txt", []byte("content"))
	require.NoError(t, err)
	require.Equal(t, "doc-123", id)
}

func TestUploadFileStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = c.UploadFile(context.Background(), "f.txt", []byte("x"))
	require.ErrorContains(t, err, "status 502")
}

func TestAssignDocuments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/agents/agent-1/documents", r.URL.Path)
		require.Equal(t, http.MethodPut, r.Method)

		var req assignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"doc-1", "doc-2"}, req.DocumentIDs)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	require.NoError(t, c.AssignDocuments(context.Background(), "agent-1", []string{"doc-1", "doc-2"}))
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := OpenState(dir)
	require.NoError(t, err)

	st.SetDocumentID("llms-example-clips.txt", "doc-9")
	st.SetDocumentID("llms-example-drill_bits.txt", "doc-10")
	st.Forget("llms-example-clips.txt")
	require.NoError(t, st.Persist())

	reloaded, err := OpenState(dir)
	require.NoError(t, err)
	id, ok := reloaded.DocumentID("llms-example-drill_bits.txt")
	require.True(t, ok)
	require.Equal(t, "doc-10", id)
	_, ok = reloaded.DocumentID("llms-example-clips.txt")
	require.False(t, ok)
	require.Equal(t, []string{"doc-10"}, reloaded.DocumentIDs())
}
