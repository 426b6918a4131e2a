package httpd

type ErrorCode int

const (
	ERROR_ACCEPT           ErrorCode = 1
	ERROR_ADD_CONNECTION   ErrorCode = 2
	ERROR_CLOSE_CONNECTION ErrorCode = 3
	ERROR_READ             ErrorCode = 4
	ERROR_EPOLL_WAIT       ErrorCode = 5
	ERROR_STOP             ErrorCode = 6
	ERROR_POOL_BUFFER      ErrorCode = 7
	ERROR_WRITE            ErrorCode = 8
	ERROR_QUEUE_FULL       ErrorCode = 9
	ERROR_MMAP             ErrorCode = 10
	ERROR_SIGNAL           ErrorCode = 11
)

func (code ErrorCode) String() string {
	switch code {
	case ERROR_ACCEPT:
		return "accept"
	case ERROR_ADD_CONNECTION:
		return "add connection"
	case ERROR_CLOSE_CONNECTION:
		return "close connection"
	case ERROR_READ:
		return "read"
	case ERROR_EPOLL_WAIT:
		return "epoll wait"
	case ERROR_STOP:
		return "stop"
	case ERROR_POOL_BUFFER:
		return "pool buffer"
	case ERROR_WRITE:
		return "write"
	case ERROR_QUEUE_FULL:
		return "queue full"
	case ERROR_MMAP:
		return "mmap"
	case ERROR_SIGNAL:
		return "signal"
	}
	return "unknown"
}
