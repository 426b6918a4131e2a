package httpd

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/gotcp/httpd/internal/logger"
)

func (s *Server) acceptAction() {
	var err error
	var fd int
	var sa unix.Sockaddr
	for {
		fd, sa, err = unix.Accept4(s.Fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EINTR || err == unix.ECONNABORTED {
				continue
			}
			if !wouldBlock(err) {
				s.triggerOnError(ERROR_ACCEPT, s.Fd, err)
			}
			break
		}

		if int(s.env.users.Load()) >= s.MaxConnections {
			unix.Close(fd)
			s.metrics.ConnectionRejected()
			logger.Debug("server busy, refused fd %d", fd)
			continue
		}
		unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		var peer = SockaddrToString(sa)
		var c = s.slot(fd)
		if err = c.init(fd, peer, s.env.getBuffers()); err != nil {
			unix.Close(fd)
			s.triggerOnError(ERROR_ADD_CONNECTION, fd, err)
			continue
		}
		s.metrics.ConnectionAccepted()
		s.metrics.SetActiveConnections(s.env.users.Load())
		s.triggerOnAccept(fd, peer)
	}
}

// slot returns the table entry for fd, growing the table as needed.
func (s *Server) slot(fd int) *Conn {
	if fd >= len(s.conns) {
		s.conns = append(s.conns, make([]*Conn, fd+1-len(s.conns))...)
	}
	if s.conns[fd] == nil {
		s.conns[fd] = newConn(s.env)
	}
	return s.conns[fd]
}

func (s *Server) lookup(fd int) *Conn {
	if fd < 0 || fd >= len(s.conns) {
		return nil
	}
	return s.conns[fd]
}

// connAction dispatches one event of a connection socket.
func (s *Server) connAction(fd int, events uint32) {
	var c = s.lookup(fd)
	if c == nil || !c.claim() {
		logger.Debug("event %#x on unclaimed fd %d", events, fd)
		return
	}
	switch {
	case events&(unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0:
		s.closeAction(c)
	case events&unix.EPOLLIN != 0:
		s.readAction(c)
	case events&unix.EPOLLOUT != 0:
		s.writeAction(c)
	default:
		c.release(unix.EPOLLIN)
	}
}

func (s *Server) readAction(c *Conn) {
	if !c.read() {
		s.closeAction(c)
		return
	}
	s.submit(c)
}

func (s *Server) writeAction(c *Conn) {
	if !c.write() {
		s.closeAction(c)
		return
	}
	if c.resubmit {
		s.submit(c)
	}
}

// submit hands c to the workers. A full queue closes the connection: no
// worker is free to answer it, and waiting for another readable edge could
// stall it until the idle sweep.
func (s *Server) submit(c *Conn) {
	c.handoff()
	if s.queue.Submit(c) {
		return
	}
	c.revoke()
	s.metrics.QueueRejected()
	s.triggerOnError(ERROR_QUEUE_FULL, c.fd, ErrQueueFull)
	s.closeAction(c)
}

func (s *Server) closeAction(c *Conn) {
	c.close()
}

// tick closes every connection idle for longer than three timeslots.
// Connections out with a worker get one more window.
func (s *Server) tick() {
	var now = s.env.now()
	var closed = s.env.timers.Tick(now, func(fd int) (time.Time, bool) {
		var c = s.lookup(fd)
		if c == nil || !c.owned() {
			return time.Time{}, false
		}
		if !c.tryClaim() {
			return now.Add(s.env.idle()), true
		}
		logger.Debug("conn %s: idle timeout on fd %d", c.id, fd)
		s.metrics.ConnectionTimedOut()
		s.closeAction(c)
		return time.Time{}, false
	})
	if closed > 0 {
		logger.Info("timer tick closed %d idle connections, %d left", closed, s.env.users.Load())
	}
}
