package httpd

// request is a hook invocation queued on the event pool.
type request struct {
	Op      OpCode
	Fd      int
	Peer    string
	ErrCode ErrorCode
	Err     error
}

func (s *Server) triggerOnAccept(fd int, peer string) {
	if s.OnAccept != nil && s.eventPool != nil {
		var item = s.getRequestItem()
		item.Op = OP_ACCEPT
		item.Fd = fd
		item.Peer = peer
		s.dispatch(item)
	}
}

func (s *Server) triggerOnClose(fd int) {
	if s.OnClose != nil && s.eventPool != nil {
		var item = s.getRequestItem()
		item.Op = OP_CLOSE
		item.Fd = fd
		s.dispatch(item)
	}
}

// triggerOnError logs the error and hands it to OnError.
func (s *Server) triggerOnError(code ErrorCode, fd int, err error) {
	logError(code, fd, err)
	if s.OnError != nil && s.eventPool != nil {
		var item = s.getRequestItem()
		item.Op = OP_ERROR
		item.Fd = fd
		item.ErrCode = code
		item.Err = err
		s.dispatch(item)
	}
}

func (s *Server) getRequestItem() *request {
	var item, ok = s.requestPool.Get().(*request)
	if !ok {
		return &request{}
	}
	return item
}

func (s *Server) putRequestItem(item *request) {
	*item = request{}
	s.requestPool.Put(item)
}
