package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentStoreDeleteAll(t *testing.T) {
	var body map[string]string
	var token, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		token = r.Header.Get(internalTokenHeader)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"total_anexos":3,"anexos_com_erro":0}`))
	}))
	defer server.Close()

	store := NewAttachmentStore(server.URL, "secret", time.Second, nil)
	deleted, err := store.DeleteAll(context.Background(), "inc-1")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, "/anexos/deletar-por-intercorrencia/", path)
	assert.Equal(t, "secret", token)
	assert.Equal(t, "inc-1", body["intercorrencia_uuid"])
}

func TestAttachmentStoreDeleteAllPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_anexos":1,"anexos_com_erro":2}`))
	}))
	defer server.Close()

	deleted, err := NewAttachmentStore(server.URL, "secret", time.Second, nil).DeleteAll(context.Background(), "inc-1")
	require.Error(t, err)
	assert.Equal(t, 1, deleted)
}

func TestAttachmentStoreDeleteAllRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"token inválido"}`))
	}))
	defer server.Close()

	_, err := NewAttachmentStore(server.URL, "wrong", time.Second, nil).DeleteAll(context.Background(), "inc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token inválido")
}
