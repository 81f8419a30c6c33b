package http_server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/stretchr/testify/assert"
)

type ctxKey struct{}

func TestNewServer(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "base")
	cfg := config.Server{
		Port:         "8800",
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	}

	srv := NewServer(ctx, cfg, http.NotFoundHandler())

	assert.Equal(t, ":8800", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
	assert.Equal(t, 3*time.Second, srv.IdleTimeout)
	assert.Equal(t, "base", srv.BaseContext(&net.TCPListener{}).Value(ctxKey{}))
}
