package httpd

import (
	"bytes"
	"strconv"

	"github.com/gotcp/httpd/internal/logger"
)

type lineStatus int

const (
	lineOK lineStatus = iota
	lineBad
	lineOpen
)

// httpCode is the outcome of parsing and resolving a request.
type httpCode int

const (
	noRequest httpCode = iota
	getRequest
	badRequest
	noResource
	forbiddenRequest
	fileRequest
	internalError
)

var (
	methodGet        = []byte("GET")
	schemeHTTP       = []byte("http://")
	headerConnection = []byte("Connection:")
	headerLength     = []byte("Content-Length:")
	headerHost       = []byte("Host:")
	keepAliveToken   = []byte("keep-alive")
)

// parseLine scans the unparsed bytes for CR LF. A complete line has its
// terminator overwritten with NULs and checked moved past it.
func (c *Conn) parseLine() lineStatus {
	var buf = c.rb.buf
	for ; c.checked < c.rb.filled; c.checked++ {
		switch buf[c.checked] {
		case '\r':
			if c.checked+1 == c.rb.filled {
				return lineOpen
			}
			if buf[c.checked+1] == '\n' {
				buf[c.checked] = 0
				buf[c.checked+1] = 0
				c.checked += 2
				return lineOK
			}
			return lineBad
		case '\n':
			// CR arrived at the end of the previous read
			if c.checked > 1 && buf[c.checked-1] == '\r' {
				buf[c.checked-1] = 0
				buf[c.checked] = 0
				c.checked++
				return lineOK
			}
			return lineBad
		}
	}
	return lineOpen
}

// processRead drives the request state machine over the buffered bytes.
func (c *Conn) processRead() httpCode {
	var status lineStatus
	for {
		if c.state == stateBody {
			if c.rb.filled >= c.checked+c.contentLength {
				c.requestEnd = c.checked + c.contentLength
				return c.doRequest()
			}
			return noRequest
		}

		if status = c.parseLine(); status != lineOK {
			break
		}
		var line = c.rb.span(c.lineStart, c.checked-2)
		c.lineStart = c.checked

		switch c.state {
		case stateRequestLine:
			if c.parseRequestLine(line) == badRequest {
				return badRequest
			}
		case stateHeaders:
			switch c.parseHeaders(line) {
			case badRequest:
				return badRequest
			case getRequest:
				return c.doRequest()
			}
		default:
			return internalError
		}
	}
	if status == lineBad {
		return badRequest
	}
	return noRequest
}

// parseRequestLine splits "GET /path HTTP/1.1" into method, target and version.
// An absolute "http://host[:port]/path" target is reduced to its path and
// the query string is dropped.
func (c *Conn) parseRequestLine(line span) httpCode {
	var text = c.rb.bytes(line)
	var i = bytes.IndexAny(text, " \t")
	if i < 0 {
		return badRequest
	}
	if !bytes.EqualFold(text[:i], methodGet) {
		return badRequest
	}
	c.method = c.rb.span(line.start, line.start+i)

	var urlStart = line.start + i + skipBlank(text[i:])
	var rest = c.rb.buf[urlStart:line.end]
	var j = bytes.IndexAny(rest, " \t")
	if j < 0 {
		return badRequest
	}
	var urlEnd = urlStart + j
	var versionStart = urlEnd + skipBlank(rest[j:])
	c.version = c.rb.span(versionStart, line.end)

	if hasPrefixFold(c.rb.buf[urlStart:urlEnd], schemeHTTP) {
		urlStart += len(schemeHTTP)
		var slash = bytes.IndexByte(c.rb.buf[urlStart:urlEnd], '/')
		if slash < 0 {
			return badRequest
		}
		urlStart += slash
	}
	if urlStart >= urlEnd || c.rb.buf[urlStart] != '/' {
		return badRequest
	}
	if q := bytes.IndexByte(c.rb.buf[urlStart:urlEnd], '?'); q >= 0 {
		urlEnd = urlStart + q
	}
	c.url = c.rb.span(urlStart, urlEnd)

	c.state = stateHeaders
	return noRequest
}

// parseHeaders handles one header line; the empty line ends the block.
func (c *Conn) parseHeaders(line span) httpCode {
	var text = c.rb.bytes(line)
	if len(text) == 0 {
		if c.contentLength != 0 {
			// a body that can never fit would stall the connection
			if c.contentLength > len(c.rb.buf)-c.checked {
				return badRequest
			}
			c.state = stateBody
			return noRequest
		}
		c.requestEnd = c.checked
		return getRequest
	}

	switch {
	case hasPrefixFold(text, headerConnection):
		var value = headerValue(text, len(headerConnection))
		if bytes.EqualFold(value, keepAliveToken) {
			c.keepAlive = true
		}
	case hasPrefixFold(text, headerLength):
		var value = headerValue(text, len(headerLength))
		var n, err = strconv.Atoi(string(value))
		if err != nil || n < 0 {
			return badRequest
		}
		c.contentLength = n
	case hasPrefixFold(text, headerHost):
		var start = line.start + len(headerHost) + skipBlank(text[len(headerHost):])
		c.host = c.rb.span(start, line.end)
	default:
		logger.Debug("conn %s: unknown header %q", c.id, text)
	}
	return noRequest
}

func headerValue(text []byte, prefix int) []byte {
	var value = text[prefix:]
	return bytes.TrimRight(value[skipBlank(value):], " \t")
}

func skipBlank(b []byte) int {
	var i int
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return i
}

func hasPrefixFold(b []byte, prefix []byte) bool {
	return len(b) >= len(prefix) && bytes.EqualFold(b[:len(prefix)], prefix)
}
