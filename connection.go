package httpd

import (
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/gotcp/httpd/internal/logger"
)

type checkState int

const (
	stateRequestLine checkState = iota
	stateHeaders
	stateBody
)

// Conn is the HTTP state machine of one client socket. The reactor reads and
// writes it; a worker parses the request and builds the response in between.
type Conn struct {
	fd      int
	id      uuid.UUID
	peer    string
	env     *connEnv
	owner   atomic.Int32
	timer   TimerID
	buffers *bufferPair

	rb            readBuffer
	checked       int
	lineStart     int
	requestEnd    int
	state         checkState
	method        span
	url           span
	version       span
	host          span
	contentLength int
	keepAlive     bool

	realFile string
	fileSize int64
	fileAddr []byte

	wb            []byte
	writeIdx      int
	iov           [2][]byte
	bytesToSend   int
	bytesHaveSent int
	status        int
	abort         bool
	resubmit      bool
}

func newConn(env *connEnv) *Conn {
	return &Conn{fd: -1, env: env}
}

// init takes over an accepted socket: buffers are attached, the socket is
// armed for reading and the idle timer starts.
func (c *Conn) init(fd int, peer string, buffers *bufferPair) error {
	c.fd = fd
	c.peer = peer
	c.id = uuid.New()
	c.buffers = buffers
	c.rb = newReadBuffer(buffers.read)
	c.wb = buffers.write
	c.reset()

	c.owner.Store(ownerPoller)
	if err := c.env.poller.add(fd, unix.EPOLLIN); err != nil {
		c.owner.Store(ownerNone)
		c.env.putBuffers(buffers)
		c.buffers = nil
		c.fd = -1
		return err
	}
	c.env.users.Add(1)
	c.timer = c.env.timers.Add(fd, c.env.now().Add(c.env.idle()))
	logger.Debug("conn %s: fd %d from %s", c.id, fd, peer)
	return nil
}

// reset clears the request and response state. Buffered bytes are kept.
func (c *Conn) reset() {
	c.checked = 0
	c.lineStart = 0
	c.requestEnd = 0
	c.state = stateRequestLine
	c.method = span{}
	c.url = span{}
	c.version = span{}
	c.host = span{}
	c.contentLength = 0
	c.keepAlive = false

	c.realFile = ""
	c.fileSize = 0

	c.writeIdx = 0
	c.iov = [2][]byte{}
	c.bytesToSend = 0
	c.bytesHaveSent = 0
	c.status = 0
	c.abort = false
	c.resubmit = false
}

// next readies the Conn for the following request on the same socket.
// Pipelined bytes past the end of the current request move to the front.
func (c *Conn) next() {
	var end = c.requestEnd
	if end <= 0 || end > c.rb.filled {
		end = c.rb.filled
	}
	c.rb.compact(end)
	c.reset()
}

func (c *Conn) refresh() {
	c.env.timers.Adjust(c.timer, c.env.now().Add(c.env.idle()))
}

// read drains the socket into the read buffer until it would block or the
// buffer fills. It returns false on peer shutdown, socket error, or when the
// buffer was already full.
func (c *Conn) read() bool {
	if c.rb.full() {
		return false
	}
	var n int
	var err error
	for !c.rb.full() {
		n, err = unix.Read(c.fd, c.rb.free())
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if wouldBlock(err) {
				break
			}
			logger.Debug("conn %s: read fd %d: %v", c.id, c.fd, err)
			return false
		}
		if n == 0 {
			return false
		}
		c.rb.filled += n
	}
	c.refresh()
	return true
}

// Process parses what has been read so far and, once a request is complete
// or malformed, builds the response. It runs on a worker.
func (c *Conn) Process() {
	var code = c.processRead()
	if code == noRequest {
		if !c.rb.full() {
			c.release(unix.EPOLLIN)
			return
		}
		// the request cannot fit the read buffer
		logger.Debug("conn %s: request exceeds %d bytes", c.id, len(c.rb.buf))
		c.keepAlive = false
		code = badRequest
	}
	if c.requestEnd == 0 {
		c.requestEnd = c.rb.filled
	}
	if !c.processWrite(code) {
		c.abort = true
	}
	c.release(unix.EPOLLOUT)
}

// write sends the prepared response with writev. It returns false when the
// Conn must be closed: write error, aborted response, or a finished response
// without keep-alive. When bytes of a pipelined request are already buffered
// the Conn stays claimed and resubmit is set.
func (c *Conn) write() bool {
	c.resubmit = false
	if c.abort {
		c.unmap()
		return false
	}

	if c.bytesToSend == 0 {
		c.next()
		c.release(unix.EPOLLIN)
		return true
	}

	var iovs = make([][]byte, 0, 2)
	var refreshed bool
	for {
		iovs = iovs[:0]
		for _, v := range c.iov {
			if len(v) > 0 {
				iovs = append(iovs, v)
			}
		}
		var n, err = unix.Writev(c.fd, iovs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if wouldBlock(err) {
				c.release(unix.EPOLLOUT)
				return true
			}
			c.env.reportError(ERROR_WRITE, c.fd, err)
			c.unmap()
			return false
		}
		c.env.metrics.BytesSent(int64(n))
		if n > 0 && !refreshed {
			c.refresh()
			refreshed = true
		}

		c.bytesToSend -= n
		c.bytesHaveSent += n
		if c.bytesHaveSent >= c.writeIdx {
			c.iov[0] = nil
			if c.bytesToSend > 0 {
				c.iov[1] = c.fileAddr[c.bytesHaveSent-c.writeIdx:]
			} else {
				c.iov[1] = nil
			}
		} else {
			c.iov[0] = c.wb[c.bytesHaveSent:c.writeIdx]
		}

		if c.bytesToSend <= 0 {
			c.unmap()
			if !c.keepAlive {
				return false
			}
			c.next()
			if c.rb.filled > 0 {
				c.resubmit = true
				return true
			}
			c.release(unix.EPOLLIN)
			return true
		}
	}
}

func (c *Conn) unmap() {
	if c.fileAddr != nil {
		if err := unix.Munmap(c.fileAddr); err != nil {
			logger.Warn("conn %s: munmap %s: %v", c.id, c.realFile, err)
		}
		c.fileAddr = nil
	}
}

// close releases the socket, the mapping, the timer and the buffers. Calling
// it on a closed Conn does nothing.
func (c *Conn) close() {
	if c.owner.Swap(ownerNone) == ownerNone {
		return
	}
	var fd = c.fd
	c.unmap()
	if err := c.env.poller.del(fd); err != nil {
		logger.Debug("conn %s: %v", c.id, err)
	}
	if err := unix.Close(fd); err != nil {
		c.env.reportError(ERROR_CLOSE_CONNECTION, fd, err)
	}
	c.env.timers.Remove(c.timer)
	c.timer = TimerID{}

	var users = c.env.users.Add(-1)
	c.env.metrics.ConnectionClosed()
	c.env.metrics.SetActiveConnections(users)
	logger.Debug("conn %s: closed fd %d, %d users left", c.id, fd, users)

	c.env.putBuffers(c.buffers)
	c.buffers = nil
	c.rb = readBuffer{}
	c.wb = nil
	c.fd = -1
	c.env.closed(fd)
}
