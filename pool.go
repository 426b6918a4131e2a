package httpd

import (
	"github.com/wuyongjia/pool"

	"github.com/gotcp/httpd/internal/logger"
)

// bufferPair is the read and write buffer of one Conn.
type bufferPair struct {
	read   []byte
	write  []byte
	pooled bool
}

func newBufferPool(capacity int, readSize int, writeSize int) *pool.Pool {
	return pool.New(capacity, func() interface{} {
		return &bufferPair{
			read:   make([]byte, readSize),
			write:  make([]byte, writeSize),
			pooled: true,
		}
	})
}

// getBuffers takes a pair from the pool, or allocates one when the pool is
// exhausted.
func (env *connEnv) getBuffers() *bufferPair {
	if env.buffers != nil {
		var iface, err = env.buffers.Get()
		if err == nil {
			if buffers, ok := iface.(*bufferPair); ok {
				return buffers
			}
			err = ErrGetPoolBuffer
		}
		logger.Debug("buffer pool: %v, allocating", err)
	}
	return &bufferPair{
		read:  make([]byte, env.readSize),
		write: make([]byte, env.writeSize),
	}
}

func (env *connEnv) putBuffers(buffers *bufferPair) {
	if buffers == nil || !buffers.pooled || env.buffers == nil {
		return
	}
	env.buffers.Put(buffers)
}
