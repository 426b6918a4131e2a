package httpd

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/gotcp/httpd/internal/metrics"
)

// fakePoller records the last arming of every fd instead of touching epoll.
type fakePoller struct {
	lock   sync.Mutex
	armed  map[int]uint32
	events []uint32
}

func newFakePoller() *fakePoller {
	return &fakePoller{armed: make(map[int]uint32)}
}

func (p *fakePoller) add(fd int, events uint32) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.armed[fd] = events
	p.events = append(p.events, events)
	return nil
}

func (p *fakePoller) mod(fd int, events uint32) error {
	return p.add(fd, events)
}

func (p *fakePoller) del(fd int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.armed, fd)
	return nil
}

func (p *fakePoller) last(fd int) (uint32, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	var events, ok = p.armed[fd]
	return events, ok
}

// clock is a settable time source.
type clock struct {
	lock sync.Mutex
	t    time.Time
}

func (c *clock) now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.t = c.t.Add(d)
}

func newTestEnv(docRoot string) (*connEnv, *fakePoller) {
	var p = newFakePoller()
	return &connEnv{
		poller:    p,
		timers:    NewTimerList(16),
		docRoot:   docRoot,
		timeslot:  time.Second,
		readSize:  DEFAULT_BUFFER_SIZE,
		writeSize: DEFAULT_BUFFER_SIZE,
		metrics:   metrics.NewNoopServerMetrics(),
		now:       time.Now,
	}, p
}

// newTestConn attaches a Conn to one end of a socketpair and returns the
// other end.
func newTestConn(t *testing.T, env *connEnv) (*Conn, int) {
	t.Helper()
	var fds, err = unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	var c = newConn(env)
	require.NoError(t, c.init(fds[0], "test", env.getBuffers()))
	t.Cleanup(func() {
		c.close()
		unix.Close(fds[1])
	})
	return c, fds[1]
}

func send(t *testing.T, fd int, data string) {
	t.Helper()
	var n, err = unix.Write(fd, []byte(data))
	require.NoError(t, err)
	require.Equal(t, len(data), n)
}

// receive reads whatever the Conn has written so far.
func receive(t *testing.T, fd int) string {
	t.Helper()
	var out []byte
	var buf = make([]byte, 4096)
	for {
		var n, err = unix.Read(fd, buf)
		if err != nil || n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return string(out)
}

// writeDocRoot creates a doc root holding the given files.
func writeDocRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	var root = t.TempDir()
	require.NoError(t, os.Chmod(root, 0755))
	for name, content := range files {
		var path = filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		require.NoError(t, os.Chmod(path, 0644))
	}
	return root
}
