package httpd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestResolveOutcomes(t *testing.T) {
	var root = writeDocRoot(t, map[string]string{
		"index.html":      indexHTML,
		"private.html":    "secret",
		"docs/guide.html": "guide",
		"empty.html":      "",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "private.html"), 0600))

	for _, tc := range []struct {
		target string
		status int
		body   string
	}{
		{"/index.html", 200, indexHTML},
		{"/empty.html", 200, ""},
		{"/missing.html", 404, error404Form},
		{"/private.html", 403, error403Form},
		{"/docs", 400, error400Form},
		{"/docs/../index.html", 400, error400Form},
		{"/" + strings.Repeat("x", FILENAME_LEN), 400, error400Form},
	} {
		t.Run(tc.target, func(t *testing.T) {
			var env, _ = newTestEnv(root)
			var c, peer = newTestConn(t, env)

			feed(t, c, peer, "GET "+tc.target+" HTTP/1.1\r\n\r\n")
			require.Equal(t, tc.status, c.status)

			assert.False(t, c.write())
			var response = receive(t, peer)
			assert.Contains(t, response, fmt.Sprintf("HTTP/1.1 %d ", tc.status))
			assert.Contains(t, response, fmt.Sprintf("Content-Length: %d\r\n", len(tc.body)))
			assert.True(t, strings.HasSuffix(response, "\r\n\r\n"+tc.body))
			assert.Nil(t, c.fileAddr, "mapping is released once the response is sent")
		})
	}
}

func TestKeepAliveResetsConnection(t *testing.T) {
	var root = writeDocRoot(t, map[string]string{"index.html": indexHTML})
	var env, p = newTestEnv(root)
	var c, peer = newTestConn(t, env)

	for i := 0; i < 3; i++ {
		feed(t, c, peer, "GET /index.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
		require.Equal(t, 200, c.status)

		require.True(t, c.write())
		assert.False(t, c.resubmit)
		var response = receive(t, peer)
		assert.Contains(t, response, "Connection: keep-alive\r\n")
		assert.True(t, strings.HasSuffix(response, indexHTML))

		var events, _ = p.last(c.fd)
		assert.NotZero(t, events&unix.EPOLLIN)
		assert.Equal(t, stateRequestLine, c.state)
		assert.Equal(t, 0, c.rb.filled)
		assert.Equal(t, 0, c.checked)
		assert.Nil(t, c.rb.bytes(c.url), "spans of the previous request are stale")
	}
}

func TestPipelinedRequests(t *testing.T) {
	var root = writeDocRoot(t, map[string]string{"a.html": "A", "b.html": "B"})
	var env, _ = newTestEnv(root)
	var c, peer = newTestConn(t, env)

	var second = "GET /b.html HTTP/1.1\r\n\r\n"
	feed(t, c, peer, "GET /a.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"+second)
	require.Equal(t, 200, c.status)

	require.True(t, c.write())
	assert.True(t, c.resubmit, "a buffered request needs another worker pass")
	assert.Equal(t, len(second), c.rb.filled)
	assert.True(t, strings.HasSuffix(receive(t, peer), "\r\n\r\nA"))

	c.Process()
	require.Equal(t, 200, c.status)
	assert.Equal(t, "/b.html", string(c.rb.bytes(c.url)))
	assert.False(t, c.write())
	assert.True(t, strings.HasSuffix(receive(t, peer), "\r\n\r\nB"))
}

func TestPartialWrite(t *testing.T) {
	var body = strings.Repeat("0123456789abcdef", 1<<16)
	var root = writeDocRoot(t, map[string]string{"big.bin": body})
	var env, p = newTestEnv(root)
	var c, peer = newTestConn(t, env)
	require.NoError(t, unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))

	feed(t, c, peer, "GET /big.bin HTTP/1.1\r\n\r\n")
	require.Equal(t, 200, c.status)

	var got strings.Builder
	var blocked bool
	for {
		var ok = c.write()
		got.WriteString(receive(t, peer))
		if !ok {
			break
		}
		blocked = true
		var events, _ = p.last(c.fd)
		require.NotZero(t, events&unix.EPOLLOUT, "a blocked write re-arms for writing")
	}

	assert.True(t, blocked, "expected the socket buffer to fill at least once")
	var response = got.String()
	var header = strings.Index(response, "\r\n\r\n")
	require.Positive(t, header)
	assert.Equal(t, len(body), len(response)-header-4)
	assert.Equal(t, body, response[header+4:])
}

func TestDetectContentType(t *testing.T) {
	var root = writeDocRoot(t, map[string]string{"data.json": `{"a": 1}`})
	var env, _ = newTestEnv(root)
	env.detectType = true
	var c, peer = newTestConn(t, env)

	feed(t, c, peer, "GET /data.json HTTP/1.1\r\n\r\n")
	assert.False(t, c.write())
	assert.Contains(t, receive(t, peer), "Content-Type: application/json\r\n")
}

func TestReadFailures(t *testing.T) {
	t.Run("peer shutdown", func(t *testing.T) {
		var env, _ = newTestEnv(t.TempDir())
		var c, peer = newTestConn(t, env)
		require.NoError(t, unix.Shutdown(peer, unix.SHUT_WR))
		assert.False(t, c.read())
	})

	t.Run("buffer already full", func(t *testing.T) {
		var env, _ = newTestEnv(t.TempDir())
		env.readSize = 256
		var c, peer = newTestConn(t, env)
		send(t, peer, strings.Repeat("a", 256))
		require.True(t, c.read())
		assert.True(t, c.rb.full())
		assert.False(t, c.read())
	})
}

func TestReadRefreshesTimer(t *testing.T) {
	var env, _ = newTestEnv(t.TempDir())
	var clk = &clock{t: env.now()}
	env.now = clk.now
	var c, peer = newTestConn(t, env)

	var _, before, ok = env.timers.Expire(c.timer)
	require.True(t, ok)
	clk.advance(2 * env.timeslot)
	send(t, peer, "GET")
	require.True(t, c.read())

	var _, after, _ = env.timers.Expire(c.timer)
	assert.Equal(t, before.Add(2*env.timeslot), after)
}

func TestWriteRefreshesTimerOnlyAfterSending(t *testing.T) {
	var root = writeDocRoot(t, map[string]string{"index.html": indexHTML})

	t.Run("sent", func(t *testing.T) {
		var env, _ = newTestEnv(root)
		var clk = &clock{t: env.now()}
		env.now = clk.now
		var c, peer = newTestConn(t, env)
		feed(t, c, peer, "GET /index.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")

		var _, before, _ = env.timers.Expire(c.timer)
		clk.advance(env.timeslot)
		require.True(t, c.write())
		receive(t, peer)

		var _, after, _ = env.timers.Expire(c.timer)
		assert.Equal(t, before.Add(env.timeslot), after)
	})

	t.Run("failed", func(t *testing.T) {
		var env, _ = newTestEnv(root)
		var clk = &clock{t: env.now()}
		env.now = clk.now
		var c, peer = newTestConn(t, env)
		feed(t, c, peer, "GET /index.html HTTP/1.1\r\n\r\n")
		require.Equal(t, 200, c.status)

		var _, before, _ = env.timers.Expire(c.timer)
		clk.advance(env.timeslot)
		require.NoError(t, unix.Shutdown(peer, unix.SHUT_RDWR))
		assert.False(t, c.write())

		var _, after, _ = env.timers.Expire(c.timer)
		assert.Equal(t, before, after)
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	var closed []int
	var env, p = newTestEnv(t.TempDir())
	env.onClose = func(fd int) { closed = append(closed, fd) }
	var c, _ = newTestConn(t, env)
	var fd = c.fd

	require.Equal(t, int32(1), env.users.Load())
	require.Equal(t, 1, env.timers.Len())

	c.close()
	c.close()

	assert.Equal(t, int32(0), env.users.Load())
	assert.Equal(t, 0, env.timers.Len())
	assert.Equal(t, []int{fd}, closed)
	assert.Equal(t, -1, c.fd)
	var _, armed = p.last(fd)
	assert.False(t, armed)
}

func TestAbortedResponseCloses(t *testing.T) {
	var root = writeDocRoot(t, map[string]string{"index.html": indexHTML})
	var env, _ = newTestEnv(root)
	env.writeSize = 16
	var c, peer = newTestConn(t, env)

	feed(t, c, peer, "GET /index.html HTTP/1.1\r\n\r\n")
	assert.True(t, c.abort, "headers cannot fit a 16 byte write buffer")
	assert.False(t, c.write())
	assert.Nil(t, c.fileAddr)
}
