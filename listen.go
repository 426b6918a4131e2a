package httpd

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// listen runs the reactor until a terminate byte arrives on the signal pipe.
func (s *Server) listen() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var err error
	var i, n int
	var fd int
	var timeout, stop bool
	var events = make([]unix.EpollEvent, s.EpollEvents)
	for !stop {
		n, err = unix.EpollWait(s.Epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.triggerOnError(ERROR_EPOLL_WAIT, s.Epfd, err)
			return fmt.Errorf("epoll_wait: %w", err)
		}
		for i = 0; i < n; i++ {
			fd = int(events[i].Fd)
			switch fd {
			case s.Fd:
				s.acceptAction()
			case s.sig.readFd():
				var t, st, err = s.sig.drain()
				if err != nil {
					s.triggerOnError(ERROR_SIGNAL, fd, err)
				}
				timeout = timeout || t
				stop = stop || st
			default:
				s.connAction(fd, events[i].Events)
			}
		}
		// idle sweeps run after I/O so ready sockets are served first
		if timeout && !stop {
			s.tick()
			s.sig.rearm()
			timeout = false
		}
	}
	return nil
}
