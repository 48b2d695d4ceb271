package transport

import (
	"net"
	"sync/atomic"

	"github.com/indigo-web/responder/config"
	"github.com/sirupsen/logrus"
)

// Supervisor owns the bound transports. As soon as any of them exits, either by failing or
// by Stop, all the rest are stopped too, and the in-flight connections are waited for.
type Supervisor struct {
	log       logrus.FieldLogger
	listeners []listening
	stopping  atomic.Bool
	stopch    chan struct{}
	done      chan struct{}
}

func NewSupervisor(log logrus.FieldLogger) *Supervisor {
	return &Supervisor{
		log:    log,
		stopch: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Add binds the transport. Failing to bind closes everything that was bound before.
func (s *Supervisor) Add(addr string, transport Transport, cb func(net.Conn)) error {
	if err := transport.Bind(addr); err != nil {
		s.closeAll()
		return err
	}

	s.log.WithField("addr", addr).Debug("bound")
	s.listeners = append(s.listeners, listening{
		addr: addr,
		t:    transport,
		cb:   cb,
	})

	return nil
}

// Run blocks until Stop is called or any of the transports exits. The error of the
// exited transport is returned.
func (s *Supervisor) Run(cfg config.NET) (err error) {
	defer close(s.done)

	if len(s.listeners) == 0 {
		return nil
	}

	exits := make(chan exit, len(s.listeners))
	for _, l := range s.listeners {
		l := l
		go func() {
			exits <- exit{l.addr, l.t.Listen(cfg, l.cb)}
		}()
	}

	pending := len(s.listeners)

	select {
	case e := <-exits:
		pending--
		err = e.err
		if err != nil {
			s.log.WithError(err).WithField("addr", e.addr).Error("listener failed")
		}
	case <-s.stopch:
	}

	s.shutdown()

	for iter := 0; iter < pending; iter++ {
		if e := <-exits; e.err != nil {
			s.log.WithError(e.err).WithField("addr", e.addr).Debug("listener exited during shutdown")
		}
	}

	return err
}

// Stop blocks until Run returns. Calling it after Run has already returned is a no-op.
// Must not be called if Run wasn't started.
func (s *Supervisor) Stop() {
	select {
	case s.stopch <- struct{}{}:
		<-s.done
	case <-s.done:
	}
}

func (s *Supervisor) shutdown() {
	if s.stopping.Swap(true) {
		return
	}

	for _, l := range s.listeners {
		l.t.Stop()
	}

	for _, l := range s.listeners {
		l.t.Wait()
		l.t.Close()
	}
}

func (s *Supervisor) closeAll() {
	for _, l := range s.listeners {
		l.t.Close()
	}
}

type listening struct {
	addr string
	t    Transport
	cb   func(conn net.Conn)
}

type exit struct {
	addr string
	err  error
}
