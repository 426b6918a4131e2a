package httpd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// signalPipe relays the periodic alarm, termination signals and Stop into
// the epoll set as single bytes on a socketpair.
type signalPipe struct {
	fds      [2]int
	lock     sync.RWMutex
	closed   bool
	alarm    *time.Timer
	timeslot time.Duration
	signals  chan os.Signal
	quit     chan struct{}
}

const (
	sigAlarm     = byte(unix.SIGALRM)
	sigTerminate = byte(unix.SIGTERM)
)

func newSignalPipe() (*signalPipe, error) {
	var fds, err = unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %w", err)
	}
	return &signalPipe{fds: fds}, nil
}

func (p *signalPipe) readFd() int {
	return p.fds[0]
}

// notify queues one signal byte. A full pipe already holds a pending wakeup,
// so the byte is dropped.
func (p *signalPipe) notify(sig byte) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return
	}
	var b = [1]byte{sig}
	for {
		var _, err = unix.Write(p.fds[1], b[:])
		if err != unix.EINTR {
			return
		}
	}
}

// startAlarm schedules one alarm byte after d. rearm schedules the next one
// once the reactor has handled the previous tick.
func (p *signalPipe) startAlarm(d time.Duration) {
	p.timeslot = d
	p.alarm = time.AfterFunc(d, func() {
		p.notify(sigAlarm)
	})
}

func (p *signalPipe) rearm() {
	if p.alarm != nil {
		p.alarm.Reset(p.timeslot)
	}
}

// relay forwards SIGTERM and SIGINT as terminate bytes.
func (p *signalPipe) relay() {
	p.signals = make(chan os.Signal, 1)
	p.quit = make(chan struct{})
	signal.Notify(p.signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for {
			select {
			case <-p.signals:
				p.notify(sigTerminate)
			case <-p.quit:
				return
			}
		}
	}()
}

// drain consumes every pending byte.
func (p *signalPipe) drain() (timeout bool, stop bool, err error) {
	var buf [64]byte
	for {
		var n int
		n, err = unix.Read(p.fds[0], buf[:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if wouldBlock(err) {
				return timeout, stop, nil
			}
			return timeout, stop, fmt.Errorf("signal pipe read: %w", err)
		}
		if n == 0 {
			return timeout, stop, nil
		}
		for _, b := range buf[:n] {
			switch b {
			case sigAlarm:
				timeout = true
			case sigTerminate:
				stop = true
			}
		}
	}
}

func (p *signalPipe) close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.alarm != nil {
		p.alarm.Stop()
	}
	if p.signals != nil {
		signal.Stop(p.signals)
		close(p.quit)
	}
	unix.Close(p.fds[0])
	unix.Close(p.fds[1])
}
