package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
)

func newTestChecker(timeout time.Duration, retries int) *Checker {
	c := NewChecker(config.ProbeConfig{Timeout: timeout, MaxRetries: retries, UserAgent: "ingest-test"}, zap.NewNop())
	c.retryCfg.InitialDelay = time.Millisecond
	c.retryCfg.MaxDelay = time.Millisecond
	return c
}

func statusServer(t *testing.T, status int, hits *int32, method *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if method != nil {
			*method = r.Method
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIsAccessible_StatusMatrix(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, true},
		{http.StatusNoContent, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := statusServer(t, tt.status, nil, nil)
			assert.Equal(t, tt.want, newTestChecker(time.Second, 0).IsAccessible(context.Background(), srv.URL))
		})
	}
}

func TestCheck_UsesHEAD(t *testing.T) {
	var method string
	srv := statusServer(t, http.StatusOK, nil, &method)

	require.NoError(t, newTestChecker(time.Second, 0).Check(context.Background(), srv.URL+"/data.csv"))
	assert.Equal(t, http.MethodHead, method)
}

func TestCheck_NotFoundIsUnreachable(t *testing.T) {
	srv := statusServer(t, http.StatusNotFound, nil, nil)

	err := newTestChecker(time.Second, 0).Check(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperrors.ErrNetworkUnreachable)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestCheck_ClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = newTestChecker(time.Second, 0).Check(context.Background(), "http://"+addr+"/x.csv")
	require.ErrorIs(t, err, apperrors.ErrNetworkUnreachable)
}

func TestCheck_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	assert.False(t, newTestChecker(50*time.Millisecond, 0).IsAccessible(context.Background(), srv.URL))
}

func TestCheck_MalformedURL(t *testing.T) {
	assert.False(t, newTestChecker(time.Second, 0).IsAccessible(context.Background(), "http://[::1"))
}

func TestCheck_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestChecker(time.Second, 2).Check(context.Background(), srv.URL))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCheck_DoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := statusServer(t, http.StatusNotFound, &hits, nil)

	require.Error(t, newTestChecker(time.Second, 3).Check(context.Background(), srv.URL))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCheck_NoRetryByDefault(t *testing.T) {
	var hits int32
	srv := statusServer(t, http.StatusBadGateway, &hits, nil)

	require.Error(t, newTestChecker(time.Second, 0).Check(context.Background(), srv.URL))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
