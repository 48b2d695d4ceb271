package transport

import (
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/indigo-web/responder/config"
	"github.com/indigo-web/responder/errors"
	"github.com/indigo-web/responder/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type transportMock struct {
	stopped     *atomic.Bool
	closed      *atomic.Bool
	bound       bool
	once        bool
	loop        time.Duration
	bindError   error
	returnError error
}

func newMock(loop time.Duration, returnError error, once bool) *transportMock {
	return &transportMock{
		stopped:     new(atomic.Bool),
		closed:      new(atomic.Bool),
		once:        once,
		loop:        loop,
		returnError: returnError,
	}
}

func (t *transportMock) Bind(string) error {
	t.bound = t.bindError == nil
	return t.bindError
}

func (t *transportMock) Listen(config.NET, func(conn net.Conn)) error {
	for !t.stopped.Load() && !t.once {
		time.Sleep(t.loop)
	}

	return t.returnError
}

func (t *transportMock) Stop() {
	t.stopped.Store(true)
}

func (t *transportMock) Close() {
	t.closed.Store(true)
}

func (t *transportMock) Wait() {
	for !t.stopped.Load() {
		time.Sleep(1 * time.Millisecond)
	}
}

func runParallel(fn func() error) chan error {
	c := make(chan error)

	go func() {
		c <- fn()
	}()

	return c
}

func runAtMost(sup *Supervisor, timeout time.Duration) error {
	select {
	case err := <-runParallel(func() error {
		return sup.Run(config.Default().NET)
	}):
		return err
	case <-time.After(timeout):
		return fmt.Errorf("supervisor timeouted")
	}
}

func TestSupervisor(t *testing.T) {
	newSupervisor := func(ts ...*transportMock) (*Supervisor, error) {
		sup := NewSupervisor(logging.Discard())
		for _, transport := range ts {
			if err := sup.Add("", transport, nil); err != nil {
				return nil, err
			}
		}

		return sup, nil
	}

	t.Run("no transports", func(t *testing.T) {
		sup, err := newSupervisor()
		require.NoError(t, err)
		require.NoError(t, runAtMost(sup, 50*time.Millisecond))
	})

	t.Run("die without error", func(t *testing.T) {
		sup, err := newSupervisor(
			newMock(100*time.Millisecond, nil, false),
			newMock(200*time.Millisecond, nil, true),
		)
		require.NoError(t, err)
		require.NoError(t, runAtMost(sup, 300*time.Millisecond))
	})

	t.Run("die with error", func(t *testing.T) {
		first := newMock(100*time.Millisecond, nil, false)
		sup, err := newSupervisor(
			first,
			newMock(200*time.Millisecond, errors.ErrAccept, true),
		)
		require.NoError(t, err)
		require.ErrorIs(t, runAtMost(sup, 300*time.Millisecond), errors.ErrAccept)
		require.True(t, first.stopped.Load())
		require.True(t, first.closed.Load())

		// must not block, as Run has already returned
		select {
		case <-runParallel(func() error {
			sup.Stop()
			return nil
		}):
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "stopping a dead supervisor blocks")
		}
	})

	t.Run("failure is logged", func(t *testing.T) {
		log, hook := test.NewNullLogger()
		sup := NewSupervisor(log)
		require.NoError(t, sup.Add("127.0.0.1:1", newMock(time.Millisecond, errors.ErrAccept, true), nil))
		require.ErrorIs(t, runAtMost(sup, 100*time.Millisecond), errors.ErrAccept)

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		require.Equal(t, logrus.ErrorLevel, entry.Level)
		require.Equal(t, "127.0.0.1:1", entry.Data["addr"])
	})

	t.Run("bind error closes bound", func(t *testing.T) {
		first := newMock(time.Millisecond, nil, false)
		second := newMock(time.Millisecond, nil, false)
		second.bindError = errors.ErrBind

		sup := NewSupervisor(logging.Discard())
		require.NoError(t, sup.Add("", first, nil))
		require.ErrorIs(t, sup.Add("", second, nil), errors.ErrBind)
		require.True(t, first.closed.Load())
	})

	t.Run("stop", func(t *testing.T) {
		sup, err := newSupervisor(
			newMock(100*time.Millisecond, nil, false),
			newMock(200*time.Millisecond, nil, false),
		)
		require.NoError(t, err)
		c := runParallel(func() error {
			return sup.Run(config.Default().NET)
		})
		time.Sleep(200 * time.Millisecond)
		c2 := runParallel(func() error {
			sup.Stop()
			return nil
		})

		select {
		case err = <-c2:
			require.NoError(t, err)
		case <-time.After(300 * time.Millisecond):
			require.Fail(t, "supervisor did not stop on time")
		}

		select {
		case err = <-c:
			require.NoError(t, err)
		case <-time.After(50 * time.Millisecond):
			require.Fail(t, "supervisor did not stop running on time")
		}
	})
}
