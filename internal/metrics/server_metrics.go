package metrics

// ServerMetrics records connection lifecycle and response outcomes of the
// reactor. Implementations must be safe for concurrent use: the reactor and
// every worker report through the same instance.
type ServerMetrics interface {
	ConnectionAccepted()

	// ConnectionRejected counts sockets closed right after accept because the
	// server was at capacity.
	ConnectionRejected()

	ConnectionClosed()

	// ConnectionTimedOut counts connections closed by the idle sweep.
	ConnectionTimedOut()

	SetActiveConnections(count int32)

	// ResponseSent counts a response by status code once it is queued for writing.
	ResponseSent(status int)

	BytesSent(n int64)

	// QueueRejected counts connections dropped because the work queue was full.
	QueueRejected()
}

// NewNoopServerMetrics returns a ServerMetrics that discards everything.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

type noopServerMetrics struct{}

func (noopServerMetrics) ConnectionAccepted()        {}
func (noopServerMetrics) ConnectionRejected()        {}
func (noopServerMetrics) ConnectionClosed()          {}
func (noopServerMetrics) ConnectionTimedOut()        {}
func (noopServerMetrics) SetActiveConnections(int32) {}
func (noopServerMetrics) ResponseSent(int)           {}
func (noopServerMetrics) BytesSent(int64)            {}
func (noopServerMetrics) QueueRejected()             {}
