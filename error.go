package httpd

import (
	"errors"
)

var (
	ErrPathTooLong     = errors.New("request path exceeds the maximum file name length")
	ErrPathTraversal   = errors.New("request path escapes the document root")
	ErrNotRegular      = errors.New("requested file is not a regular file")
	ErrQueueFull       = errors.New("work queue is full")
	ErrServerClosed    = errors.New("server closed")
	ErrInvalidPoolSize = errors.New("thread and queue sizes must be positive")
	ErrEventThreads    = errors.New("event threads exceed the queue length")
	ErrGetPoolBuffer   = errors.New("get pool buffer error")
	ErrResponseTooLong = errors.New("response headers exceed the write buffer")
)
