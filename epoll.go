package httpd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gotcp/httpd/internal/logger"
	"github.com/gotcp/httpd/internal/metrics"
)

const (
	DEFAULT_EPOLL_EVENTS    = 10000
	DEFAULT_MAX_CONNECTIONS = 65535
	DEFAULT_BUFFER_SIZE     = 2048
	DEFAULT_TIMESLOT        = 5 * time.Second
	DEFAULT_EVENT_THREADS   = 1
)

// New creates the epoll instance. The listening socket is created by
// InitEpoll (or Start).
func New(docRoot string, threads int, queueLength int) (*Server, error) {
	if threads <= 0 || queueLength <= 0 {
		return nil, ErrInvalidPoolSize
	}
	var epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	var s = &Server{
		DocRoot:        docRoot,
		Epfd:           epfd,
		Fd:             -1,
		Threads:        threads,
		QueueLength:    queueLength,
		ReadBuffer:     DEFAULT_BUFFER_SIZE,
		WriteBuffer:    DEFAULT_BUFFER_SIZE,
		EpollEvents:    DEFAULT_EPOLL_EVENTS,
		MaxConnections: DEFAULT_MAX_CONNECTIONS,
		Timeslot:       DEFAULT_TIMESLOT,
		EventThreads:   DEFAULT_EVENT_THREADS,
		metrics:        metrics.NewNoopServerMetrics(),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
	}
	s.requestPool.New = func() interface{} {
		return &request{}
	}
	return s, nil
}

func (s *Server) SetReadBuffer(n int) {
	s.ReadBuffer = n
}

func (s *Server) SetWriteBuffer(n int) {
	s.WriteBuffer = n
}

func (s *Server) SetEpollEvents(n int) {
	s.EpollEvents = n
}

func (s *Server) SetMaxConnections(n int) {
	s.MaxConnections = n
}

func (s *Server) SetTimeslot(d time.Duration) {
	s.Timeslot = d
}

func (s *Server) SetDetectContentType(b bool) {
	s.DetectContentType = b
}

func (s *Server) SetEventThreads(n int) {
	s.EventThreads = n
}

// SetMetrics replaces the no-op metrics sink.
func (s *Server) SetMetrics(m metrics.ServerMetrics) {
	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}
	s.metrics = m
}

// SetHandleSignals makes SIGTERM and SIGINT stop the server.
func (s *Server) SetHandleSignals(b bool) {
	s.handleSignals = b
}

// Start binds host:port and serves until Stop or a termination signal.
func (s *Server) Start(host string, port int) error {
	if err := s.InitEpoll(host, port); err != nil {
		return err
	}
	return s.Listen()
}

// InitEpoll creates the listening socket and the signal pipe and registers
// both. Port 0 binds an ephemeral port, readable through Port afterwards.
func (s *Server) InitEpoll(host string, port int) error {
	var err error
	var ip = net.ParseIP(host).To4()
	if ip == nil {
		return fmt.Errorf("invalid IPv4 host %q", host)
	}

	var fd int
	if fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0); err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt TCP_NODELAY: %w", err)
	}

	var addr = unix.SockaddrInet4{Port: port}
	copy(addr.Addr[:], ip)
	if err = unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen: %w", err)
	}
	if port == 0 {
		if sa, err := unix.Getsockname(fd); err == nil {
			if in4, ok := sa.(*unix.SockaddrInet4); ok {
				port = in4.Port
			}
		}
	}

	var ep = epoller{epfd: s.Epfd}
	if err = ep.watch(fd); err != nil {
		unix.Close(fd)
		return err
	}
	var sig *signalPipe
	if sig, err = newSignalPipe(); err != nil {
		unix.Close(fd)
		return err
	}
	if err = ep.watch(sig.readFd()); err != nil {
		sig.close()
		unix.Close(fd)
		return err
	}

	s.Host = host
	s.Port = port
	s.Fd = fd
	s.sig = sig
	return nil
}

// Addr is the bound host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Ready is closed once Listen has entered the event loop.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Listen builds the worker pool, the timers and the connection table, then
// runs the event loop on the calling goroutine until Stop.
func (s *Server) Listen() error {
	s.lock.Lock()
	if s.stopped || s.running {
		s.lock.Unlock()
		return ErrServerClosed
	}
	if s.sig == nil {
		s.lock.Unlock()
		return fmt.Errorf("listen: InitEpoll has not been called")
	}
	if err := s.prepare(); err != nil {
		s.lock.Unlock()
		return err
	}
	s.running = true
	s.lock.Unlock()

	logger.Info("serving %s on %s with %d workers", s.DocRoot, s.Addr(), s.Threads)
	close(s.ready)
	var err = s.listen()
	s.lock.Lock()
	s.stopped = true
	s.lock.Unlock()
	s.shutdown()
	close(s.done)
	return err
}

func (s *Server) prepare() error {
	if s.EventThreads <= 0 {
		s.EventThreads = DEFAULT_EVENT_THREADS
	}
	if s.EventThreads > s.QueueLength {
		return fmt.Errorf("%w: %d event threads, queue length %d", ErrEventThreads, s.EventThreads, s.QueueLength)
	}

	var err error
	if s.queue, err = NewWorkQueue[*Conn](s.Threads, s.QueueLength); err != nil {
		return err
	}
	s.eventPool = s.newEventPool()

	var tableSize = s.MaxConnections
	if tableSize > 1024 {
		tableSize = 1024
	}
	s.conns = make([]*Conn, 0, tableSize)

	s.env = &connEnv{
		poller:     epoller{epfd: s.Epfd},
		timers:     NewTimerList(tableSize),
		docRoot:    s.DocRoot,
		timeslot:   s.Timeslot,
		detectType: s.DetectContentType,
		readSize:   s.ReadBuffer,
		writeSize:  s.WriteBuffer,
		metrics:    s.metrics,
		buffers:    newBufferPool(20*s.Threads, s.ReadBuffer, s.WriteBuffer),
		now:        time.Now,
		onClose:    s.triggerOnClose,
		onError:    s.triggerOnError,
	}

	s.sig.startAlarm(s.Timeslot)
	if s.handleSignals {
		s.sig.relay()
	}
	return nil
}

// Stop ends the event loop and releases every connection and descriptor.
// It waits for a running Listen to return.
func (s *Server) Stop() error {
	s.lock.Lock()
	if s.stopped {
		s.lock.Unlock()
		return ErrServerClosed
	}
	s.stopped = true
	var running = s.running
	s.lock.Unlock()

	if running {
		s.sig.notify(sigTerminate)
		<-s.done
		return nil
	}
	s.shutdown()
	return nil
}

func (s *Server) shutdown() {
	if s.queue != nil {
		s.queue.Close()
	}
	for _, c := range s.conns {
		if c != nil {
			c.close()
		}
	}
	// The event pool stays open: closing Args sets its workers spinning on
	// the closed channel, while an open one keeps them parked.
	s.hooksOff.Store(true)
	if s.sig != nil {
		s.sig.close()
	}
	if s.Fd >= 0 {
		unix.Close(s.Fd)
		s.Fd = -1
	}
	if s.Epfd >= 0 {
		unix.Close(s.Epfd)
		s.Epfd = -1
	}
	logger.Info("server on %s stopped", s.Addr())
}
