package singleton

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListen_PortAvailable(t *testing.T) {
	tmp, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := tmp.Addr().String()
	tmp.Close()

	listener, err := Listen(context.Background(), addr)
	require.NoError(t, err)
	defer listener.Close()
	assert.Equal(t, addr, listener.Addr().String())
}

func TestListen_PortHeldByHealthyInstance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	listener, err := Listen(context.Background(), strings.TrimPrefix(server.URL, "http://"))
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, listener)
}

func TestListen_PortHeldByUnhealthyProcess(t *testing.T) {
	holder, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer holder.Close()

	listener, err := Listen(context.Background(), holder.Addr().String())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, listener)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestIsAddrInUse(t *testing.T) {
	l1, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l1.Close()

	_, inUse := net.Listen("tcp", l1.Addr().String())
	assert.True(t, isAddrInUse(inUse))

	_, invalid := net.Listen("tcp", "invalid")
	assert.False(t, isAddrInUse(invalid))
	assert.False(t, isAddrInUse(nil))
}

func TestIsInstanceRunning(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"healthy", http.StatusOK, true},
		{"unhealthy", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			assert.Equal(t, tt.want, isInstanceRunning(context.Background(), strings.TrimPrefix(server.URL, "http://")))
		})
	}

	t.Run("bad address", func(t *testing.T) {
		assert.False(t, isInstanceRunning(context.Background(), "no-port"))
	})
}
