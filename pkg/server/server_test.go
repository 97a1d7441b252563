package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twizmwazin/pap/pkg/common/metrics"
	"github.com/twizmwazin/pap/pkg/executors"
	"github.com/twizmwazin/pap/pkg/registry"
	"github.com/twizmwazin/pap/pkg/store"
	"go.uber.org/zap"
)

func setupTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := registry.New(zap.NewNop())
	reg.Register(executors.HelloExecutor{})

	collector := metrics.NewCollector(t.Name())
	srv := New(db, reg, collector, zap.NewNop(), "127.0.0.1:0")
	return srv, db
}

func validSubmitBody() []byte {
	req := SubmitRequest{
		Config: store.Config{
			Projects: []store.Project{{Name: "p1", Binary: "p1.bin", Arch: "x86_64"}},
			Jobs: []store.Job{{
				Name: "job1",
				Steps: []store.Step{{
					Name: "step1",
					Call: "hello",
					Args: map[string]store.ArgValue{"name": store.NewStringArg("world")},
				}},
			}},
		},
		Files: map[string][]byte{"p1.bin": {}},
	}
	b, _ := json.Marshal(req)
	return b
}

func TestSubmitPipelineRejectsUnregisteredExecutor(t *testing.T) {
	srv, _ := setupTestServer(t)

	req := SubmitRequest{
		Config: store.Config{
			Projects: []store.Project{{Name: "p1", Binary: "p1.bin", Arch: "x86_64"}},
			Jobs: []store.Job{{
				Name:  "job1",
				Steps: []store.Step{{Name: "step1", Call: "does-not-exist"}},
			}},
		},
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/pipelines", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	srv.httpServer.Handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitPipelineAcceptsValidSubmission(t *testing.T) {
	srv, db := setupTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/pipelines", bytes.NewReader(validSubmitBody()))
	r.Header.Set("Content-Type", "application/json")
	srv.httpServer.Handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusCreated, w.Code)

	var status store.PipelineStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.NotZero(t, status.ID)

	// Allow the spawned engine goroutine to finish.
	assert.Eventually(t, func() bool {
		p, err := db.GetPipeline(context.Background(), status.ID)
		return err == nil && p.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetPipelineNotFound(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pipelines/999", nil)
	srv.httpServer.Handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestObjectPutThenGet(t *testing.T) {
	srv, _ := setupTestServer(t)

	key := "6b6579" // hex("key")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/v1/objects/ns/"+key, bytes.NewReader([]byte("value")))
	srv.httpServer.Handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/v1/objects/ns/"+key, nil)
	srv.httpServer.Handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "value", w.Body.String())
}

func TestCancelAndDeletePipeline(t *testing.T) {
	srv, db := setupTestServer(t)
	ctx := context.Background()

	status, err := db.InsertPipeline(ctx, &store.Submission{
		Config: store.Config{
			Projects: []store.Project{{Name: "p1", Binary: "p1.bin", Arch: "x86_64"}},
			Jobs:     []store.Job{{Name: "job1", Steps: []store.Step{{Name: "s1", Call: "hello"}}}},
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/pipelines/1/_cancel", nil)
	_ = status
	srv.httpServer.Handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodDelete, "/v1/pipelines/1", nil)
	srv.httpServer.Handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
