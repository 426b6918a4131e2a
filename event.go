package httpd

// Hooks run on the event pool, never on the reactor goroutine. The fd passed
// to OnClose is already closed and may have been reused by the time it runs.
type OnAcceptEvent func(fd int, peer string)
type OnCloseEvent func(fd int)
type OnErrorEvent func(code ErrorCode, fd int, err error)
