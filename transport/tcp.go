package transport

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/responder/config"
	"github.com/indigo-web/responder/errors"
)

type listener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

type TCP struct {
	l        listener
	wg       *sync.WaitGroup
	stop     *atomic.Bool
	inflight *atomic.Int64
}

func NewTCP() *TCP {
	tcp := newTCP(nil)
	return &tcp
}

func newTCP(l listener) TCP {
	return TCP{
		l:        l,
		wg:       new(sync.WaitGroup),
		stop:     new(atomic.Bool),
		inflight: new(atomic.Int64),
	}
}

func bindTCP(addr string) (*net.TCPListener, error) {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	return net.ListenTCP("tcp", tcpaddr)
}

func (t *TCP) Bind(addr string) (err error) {
	t.l, err = bindTCP(addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrBind, addr, err)
	}

	return nil
}

// Listen runs the accept loop until either Stop is called or accepting fails. Every accepted
// connection is passed to cb in its own goroutine, unless cfg.Blocking is set. The connection
// is closed as soon as cb returns.
func (t *TCP) Listen(cfg config.NET, cb func(conn net.Conn)) error {
	period := time.Duration(cfg.AcceptLoopInterruptPeriod)

	for !t.stop.Load() {
		err := t.l.SetDeadline(time.Now().Add(period))
		if err != nil {
			if t.stop.Load() {
				return nil
			}

			return fmt.Errorf("%w: %w", errors.ErrAccept, err)
		}

		conn, err := t.l.Accept()
		if err != nil {
			if stderrors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			if t.stop.Load() {
				// the listener was closed from outside while accepting
				return nil
			}

			return fmt.Errorf("%w: %w", errors.ErrAccept, err)
		}

		t.wg.Add(1)
		t.inflight.Add(1)

		if cfg.Blocking {
			t.serve(conn, cb)
			continue
		}

		go t.serve(conn, cb)
	}

	return nil
}

func (t *TCP) serve(conn net.Conn, cb func(net.Conn)) {
	defer func() {
		_ = conn.Close()
		t.inflight.Add(-1)
		t.wg.Done()
	}()

	cb(conn)
}

// Stop interrupts the accept loop. Already accepted connections aren't affected.
func (t *TCP) Stop() {
	t.stop.Store(true)

	if t.l != nil {
		// wake up the pending Accept() instead of waiting for the interrupt period
		_ = t.l.SetDeadline(time.Now())
	}
}

func (t *TCP) Close() {
	if t.l != nil {
		_ = t.l.Close()
	}
}

// Wait blocks until all the dispatched connections are done.
func (t *TCP) Wait() {
	t.wg.Wait()
}

// Inflight returns the number of connections being served at the moment.
func (t *TCP) Inflight() int {
	return int(t.inflight.Load())
}

// Addr returns the bound address or nil, if not bound yet.
func (t *TCP) Addr() net.Addr {
	if t.l == nil {
		return nil
	}

	return t.l.Addr()
}
