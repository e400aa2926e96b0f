// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

// the pump is what the driver talks to
var _ m16.Transport = (*Pump)(nil)

func readAll(t *testing.T, p *Pump, want int) []byte {
	t.Helper()
	var got []byte
	require.Eventually(t, func() bool {
		if p.Available() {
			data, _ := p.ReadAvailable()
			got = append(got, data...)
		}
		return len(got) >= want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestPump_ReadsAndWrites(t *testing.T) {
	local, remote := net.Pipe()
	p := NewPump(local)
	defer p.Close()

	assert.False(t, p.Available())
	data, err := p.ReadAvailable()
	assert.NoError(t, err)
	assert.Empty(t, data)

	go func() {
		remote.Write([]byte("$abc"))
		remote.Write([]byte("def\n"))
	}()
	assert.Equal(t, "$abcdef\n", string(readAll(t, p, 8)))

	go func() {
		_, err := p.Write([]byte("cc5"))
		assert.NoError(t, err)
	}()
	buf := make([]byte, 3)
	_, err = io.ReadFull(remote, buf)
	require.NoError(t, err)
	assert.Equal(t, "cc5", string(buf))
}

func TestPump_ReadErrorAfterData(t *testing.T) {
	local, remote := net.Pipe()
	p := NewPump(local)
	defer p.Close()

	go func() {
		remote.Write([]byte("Hi"))
		remote.Close()
	}()

	assert.Equal(t, "Hi", string(readAll(t, p, 2)))

	require.Eventually(t, p.Available, 2*time.Second, 5*time.Millisecond)
	_, err := p.ReadAvailable()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPump_Close(t *testing.T) {
	local, _ := net.Pipe()
	p := NewPump(local)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = p.ReadAvailable()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenSerial_MissingPort(t *testing.T) {
	_, err := OpenSerial("/dev/m16-does-not-exist", 9600)
	assert.True(t, errors.Is(err, ErrPortNotFound), "got %v", err)
}

func newBridge(t *testing.T, user, pass string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// greet with a text message, then echo binary frames back
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				conn.WriteMessage(websocket.BinaryMessage, data)
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOpenWebSocket_Echo(t *testing.T) {
	srv := newBridge(t, "admin", "secret")
	defer srv.Close()

	p, err := OpenWebSocket(context.Background(), wsURL(srv), "admin", "secret", false)
	require.NoError(t, err)
	defer p.Close()

	n, err := p.Write([]byte("Hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "Hi", string(readAll(t, p, 2)))
}

func TestOpenWebSocket_Unauthorized(t *testing.T) {
	srv := newBridge(t, "admin", "secret")
	defer srv.Close()

	_, err := OpenWebSocket(context.Background(), wsURL(srv), "admin", "wrong", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestOpenWebSocket_BadScheme(t *testing.T) {
	_, err := OpenWebSocket(context.Background(), "http://localhost:1/", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}
