package httpd

type OpCode int

const (
	OP_ACCEPT OpCode = 1
	OP_CLOSE  OpCode = 2
	OP_ERROR  OpCode = 3
)

func (op OpCode) String() string {
	switch op {
	case OP_ACCEPT:
		return "accept"
	case OP_CLOSE:
		return "close"
	case OP_ERROR:
		return "error"
	}
	return "unknown"
}
