package httpd

import (
	"github.com/wuyongjia/threadpool"

	"github.com/gotcp/httpd/internal/logger"
)

// newEventPool runs the user hooks away from the reactor goroutine.
func (s *Server) newEventPool() *threadpool.Pool {
	var p = threadpool.NewWithFunc(s.EventThreads, s.QueueLength, func(payload interface{}) {
		var req, ok = payload.(*request)
		if ok {
			switch req.Op {
			case OP_ACCEPT:
				s.OnAccept(req.Fd, req.Peer)
			case OP_CLOSE:
				s.OnClose(req.Fd)
			case OP_ERROR:
				s.OnError(req.ErrCode, req.Fd, req.Err)
			}
			s.putRequestItem(req)
		}
	})
	return p
}

// dispatch queues a hook without blocking the caller. The event pool's
// backlog is bounded by QueueLength; when it is full the hook is dropped.
func (s *Server) dispatch(item *request) {
	if s.hooksOff.Load() {
		s.putRequestItem(item)
		return
	}
	select {
	case s.eventPool.Args <- item:
	default:
		logger.Warn("event pool full, dropping %s hook for fd %d", item.Op, item.Fd)
		s.putRequestItem(item)
	}
}

func logError(code ErrorCode, fd int, err error) {
	switch code {
	case ERROR_WRITE, ERROR_READ, ERROR_CLOSE_CONNECTION:
		logger.Debug("%s error on fd %d: %v", code, fd, err)
	case ERROR_QUEUE_FULL, ERROR_POOL_BUFFER:
		logger.Warn("%s error on fd %d: %v", code, fd, err)
	default:
		logger.Error("%s error on fd %d: %v", code, fd, err)
	}
}
