package httpd

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sys/unix"

	"github.com/gotcp/httpd/internal/logger"
)

// FILENAME_LEN bounds doc root plus request target, terminator included.
const FILENAME_LEN = 200

const (
	ok200Title    = "OK"
	error400Title = "Bad Request"
	error400Form  = "Your request has bad syntax or is inherently impossible to satisfy.\n"
	error403Title = "Forbidden"
	error403Form  = "You do not have permission to get file from this server.\n"
	error404Title = "Not Found"
	error404Form  = "The requested file was not found on this server.\n"
	error500Title = "Internal Server Error"
	error500Form  = "There was an unusual problem serving the requested file.\n"
)

const defaultContentType = "text/html"

// doRequest maps the parsed target to a file under the doc root and maps it
// into memory.
func (c *Conn) doRequest() httpCode {
	var url = c.rb.bytes(c.url)
	if url == nil {
		return internalError
	}
	if hasDotDot(url) {
		logger.Debug("conn %s: %v: %q", c.id, ErrPathTraversal, url)
		return badRequest
	}
	if len(c.env.docRoot)+len(url) > FILENAME_LEN-1 {
		logger.Debug("conn %s: %v: %q", c.id, ErrPathTooLong, url)
		return badRequest
	}
	c.realFile = c.env.docRoot + string(url)

	var stat unix.Stat_t
	if err := unix.Stat(c.realFile, &stat); err != nil {
		return noResource
	}
	switch {
	case stat.Mode&unix.S_IFMT == unix.S_IFDIR:
		return badRequest
	case stat.Mode&unix.S_IROTH == 0:
		return forbiddenRequest
	case stat.Mode&unix.S_IFMT != unix.S_IFREG:
		logger.Debug("conn %s: %v: %s", c.id, ErrNotRegular, c.realFile)
		return forbiddenRequest
	}
	c.fileSize = stat.Size
	if c.fileSize == 0 {
		return fileRequest
	}

	var fd, err = unix.Open(c.realFile, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		c.env.reportError(ERROR_MMAP, c.fd, fmt.Errorf("open %s: %w", c.realFile, err))
		return internalError
	}
	defer unix.Close(fd)

	if c.fileAddr, err = unix.Mmap(fd, 0, int(c.fileSize), unix.PROT_READ, unix.MAP_PRIVATE); err != nil {
		c.fileAddr = nil
		c.env.reportError(ERROR_MMAP, c.fd, fmt.Errorf("mmap %s: %w", c.realFile, err))
		return internalError
	}
	return fileRequest
}

// processWrite fills the write buffer for the given outcome and sets up the
// iovec. It returns false when the response does not fit.
func (c *Conn) processWrite(code httpCode) bool {
	var status int
	var title, form string
	switch code {
	case internalError:
		status, title, form = 500, error500Title, error500Form
	case badRequest:
		status, title, form = 400, error400Title, error400Form
	case noResource:
		status, title, form = 404, error404Title, error404Form
	case forbiddenRequest:
		status, title, form = 403, error403Title, error403Form
	case fileRequest:
		if !c.addStatusLine(200, ok200Title) || !c.addHeaders(c.fileSize, c.contentType()) {
			return false
		}
		c.iov[0] = c.wb[:c.writeIdx]
		c.iov[1] = c.fileAddr
		c.bytesToSend = c.writeIdx + int(c.fileSize)
		c.status = 200
		c.env.metrics.ResponseSent(200)
		return true
	default:
		return false
	}

	if !c.addStatusLine(status, title) || !c.addHeaders(int64(len(form)), defaultContentType) || !c.addContent(form) {
		return false
	}
	c.iov[0] = c.wb[:c.writeIdx]
	c.iov[1] = nil
	c.bytesToSend = c.writeIdx
	c.status = status
	c.env.metrics.ResponseSent(status)
	return true
}

func (c *Conn) contentType() string {
	if c.env.detectType && len(c.fileAddr) > 0 {
		return mimetype.Detect(c.fileAddr).String()
	}
	return defaultContentType
}

// addResponse formats into the free part of the write buffer.
func (c *Conn) addResponse(format string, args ...any) bool {
	if c.writeIdx >= len(c.wb) {
		return false
	}
	var free = c.wb[c.writeIdx:c.writeIdx:len(c.wb)]
	var out = fmt.Appendf(free, format, args...)
	if len(out) > len(c.wb)-c.writeIdx {
		logger.Debug("conn %s: %v", c.id, ErrResponseTooLong)
		return false
	}
	c.writeIdx += len(out)
	return true
}

func (c *Conn) addStatusLine(status int, title string) bool {
	return c.addResponse("HTTP/1.1 %d %s\r\n", status, title)
}

func (c *Conn) addHeaders(contentLength int64, contentType string) bool {
	return c.addResponse("Content-Length: %d\r\n", contentLength) &&
		c.addResponse("Content-Type: %s\r\n", contentType) &&
		c.addLinger() &&
		c.addResponse("\r\n")
}

func (c *Conn) addLinger() bool {
	if c.keepAlive {
		return c.addResponse("Connection: keep-alive\r\n")
	}
	return c.addResponse("Connection: close\r\n")
}

func (c *Conn) addContent(content string) bool {
	return c.addResponse("%s", content)
}

func hasDotDot(url []byte) bool {
	for _, segment := range bytes.Split(url, []byte{'/'}) {
		if bytes.Equal(segment, []byte("..")) {
			return true
		}
	}
	return false
}
