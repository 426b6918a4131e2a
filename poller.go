package httpd

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// poller arms connection sockets. Every registration is edge-triggered and
// one-shot: after an event fires the socket stays silent until mod re-arms it.
type poller interface {
	add(fd int, events uint32) error
	mod(fd int, events uint32) error
	del(fd int) error
}

const connEvents = unix.EPOLLET | unix.EPOLLONESHOT | unix.EPOLLRDHUP

type epoller struct {
	epfd int
}

func (p epoller) add(fd int, events uint32) error {
	var event = unix.EpollEvent{Events: events | connEvents, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl add %d: %w", fd, err)
	}
	return nil
}

func (p epoller) mod(fd int, events uint32) error {
	var event = unix.EpollEvent{Events: events | connEvents, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl mod %d: %w", fd, err)
	}
	return nil
}

func (p epoller) del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del %d: %w", fd, err)
	}
	return nil
}

// watch registers a server-side descriptor (listener, signal pipe) that is
// drained until EAGAIN on every edge.
func (p epoller) watch(fd int) error {
	var event = unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl add %d: %w", fd, err)
	}
	return nil
}
