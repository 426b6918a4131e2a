package httpd

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gotcp/httpd/internal/metrics"
	"github.com/wuyongjia/pool"
	"github.com/wuyongjia/threadpool"
)

// Server is an epoll reactor serving static files from DocRoot.
// Exported fields are read when Listen starts; change them through the
// setters before that.
type Server struct {
	Host              string
	Port              int
	DocRoot           string
	Epfd              int
	Fd                int
	Threads           int
	QueueLength       int
	ReadBuffer        int
	WriteBuffer       int
	EpollEvents       int
	MaxConnections    int
	Timeslot          time.Duration
	DetectContentType bool
	EventThreads      int
	OnAccept          OnAcceptEvent
	OnClose           OnCloseEvent
	OnError           OnErrorEvent

	env           *connEnv
	conns         []*Conn
	queue         *WorkQueue[*Conn]
	eventPool     *threadpool.Pool
	hooksOff      atomic.Bool
	requestPool   sync.Pool
	metrics       metrics.ServerMetrics
	sig           *signalPipe
	handleSignals bool

	lock    sync.Mutex
	running bool
	stopped bool
	ready   chan struct{}
	done    chan struct{}
}

// connEnv is the server state shared by every Conn.
type connEnv struct {
	poller     poller
	timers     *TimerList
	users      atomic.Int32
	docRoot    string
	timeslot   time.Duration
	detectType bool
	readSize   int
	writeSize  int
	metrics    metrics.ServerMetrics
	buffers    *pool.Pool
	now        func() time.Time
	onClose    func(fd int)
	onError    func(code ErrorCode, fd int, err error)
}

// idle is how long a connection may stay silent before the sweep closes it.
func (env *connEnv) idle() time.Duration {
	return 3 * env.timeslot
}

func (env *connEnv) closed(fd int) {
	if env.onClose != nil {
		env.onClose(fd)
	}
}

func (env *connEnv) reportError(code ErrorCode, fd int, err error) {
	if env.onError != nil {
		env.onError(code, fd, err)
	}
}
