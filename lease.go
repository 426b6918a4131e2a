package httpd

import (
	"runtime"

	"github.com/gotcp/httpd/internal/logger"
)

// A Conn is held by exactly one party at a time. The poller holds it while
// its one-shot registration is armed; the reactor claims it when an event
// fires and either finishes with it, hands it to a worker, or releases it
// back to the poller. Only the reactor closes a Conn, and only while it
// holds the claim.
const (
	ownerNone int32 = iota
	ownerPoller
	ownerArming
	ownerReactor
	ownerWorker
)

// claim takes the Conn for the reactor after an epoll event. A release in
// flight on a worker finishes first.
func (c *Conn) claim() bool {
	for {
		if c.owner.CompareAndSwap(ownerPoller, ownerReactor) {
			return true
		}
		if c.owner.Load() != ownerArming {
			return false
		}
		runtime.Gosched()
	}
}

// tryClaim takes the Conn only if it is parked in the poller.
func (c *Conn) tryClaim() bool {
	return c.owner.CompareAndSwap(ownerPoller, ownerReactor)
}

func (c *Conn) handoff() {
	c.owner.Store(ownerWorker)
}

// revoke returns a Conn the work queue refused to the reactor.
func (c *Conn) revoke() bool {
	return c.owner.CompareAndSwap(ownerWorker, ownerReactor)
}

// release re-arms the socket for events and gives up the claim.
func (c *Conn) release(events uint32) {
	c.owner.Store(ownerArming)
	if err := c.env.poller.mod(c.fd, events); err != nil {
		// the idle sweep reclaims it
		logger.Warn("conn %s: re-arm fd %d: %v", c.id, c.fd, err)
	}
	c.owner.Store(ownerPoller)
}

func (c *Conn) owned() bool {
	return c.owner.Load() != ownerNone
}
