package abbyy_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvottam-bhagat/docu-ai-processor/internal/adapter/abbyy"
)

func TestClient_Submit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/models/invoice", r.URL.Path)
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "scan.pdf", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4 fake"), content)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"documents": []map[string]string{{"id": "doc-1"}},
		})
	}))
	defer ts.Close()

	client := abbyy.NewClient("k1")
	client.SetBaseURL(ts.URL)

	id, err := client.Submit(context.Background(), "scan.pdf", "application/pdf", []byte("%PDF-1.4 fake"), "invoice")
	assert.NoError(t, err)
	assert.Equal(t, "doc-1", id)
}

func TestClient_Submit_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer ts.Close()

	client := abbyy.NewClient("k1")
	client.SetBaseURL(ts.URL)

	_, err := client.Submit(context.Background(), "scan.pdf", "application/pdf", nil, "invoice")
	assert.ErrorContains(t, err, "401")
}

func TestClient_Submit_NoDocumentID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"documents": []map[string]string{}})
	}))
	defer ts.Close()

	client := abbyy.NewClient("k1")
	client.SetBaseURL(ts.URL)

	_, err := client.Submit(context.Background(), "scan.pdf", "application/pdf", nil, "invoice")
	assert.ErrorContains(t, err, "no document id")
}

func TestClient_Fields(t *testing.T) {
	body := `{"invoice":{"meta":{"status":"Processed"},"fields":{"Total":{"value":"42.00","confidence":0.93}}}}`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/models/invoice/doc-1", r.URL.Path)
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	defer ts.Close()

	client := abbyy.NewClient("k1")
	client.SetBaseURL(ts.URL)

	resp, err := client.Fields(context.Background(), "invoice", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Processed", resp.Status)
	assert.Equal(t, json.RawMessage(`"42.00"`), resp.Fields["Total"].Value)
	require.NotNil(t, resp.Fields["Total"].Confidence)
	assert.InDelta(t, 0.93, *resp.Fields["Total"].Confidence, 1e-9)
	assert.JSONEq(t, body, string(resp.Raw))
}

func TestClient_Fields_ModelAgnostic(t *testing.T) {
	// The model object key varies per model type; it is found by its
	// meta member, not by name.
	body := `{"receipt":{"meta":{"status":"Processing"}}}`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer ts.Close()

	client := abbyy.NewClient("k1")
	client.SetBaseURL(ts.URL)

	resp, err := client.Fields(context.Background(), "receipt", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Processing", resp.Status)
}

func TestClient_Fields_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := abbyy.NewClient("k1")
	client.SetBaseURL(ts.URL)

	_, err := client.Fields(context.Background(), "invoice", "doc-1")
	assert.ErrorContains(t, err, "503")
}

func TestClient_Fields_NoStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"requestId":"r-1"}`))
	}))
	defer ts.Close()

	client := abbyy.NewClient("k1")
	client.SetBaseURL(ts.URL)

	_, err := client.Fields(context.Background(), "invoice", "doc-1")
	assert.ErrorContains(t, err, "no document status")
}
