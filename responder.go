package responder

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/indigo-web/responder/config"
	"github.com/indigo-web/responder/content"
	"github.com/indigo-web/responder/errors"
	"github.com/indigo-web/responder/internal/handler"
	"github.com/indigo-web/responder/internal/logging"
	"github.com/indigo-web/responder/router"
	"github.com/indigo-web/responder/transport"
	"github.com/sirupsen/logrus"
)

// App binds a single listener and answers every connection with a canned response.
type App struct {
	cfg    *config.Config
	hooks  hooks
	log    logrus.FieldLogger
	store  content.Store
	router *router.Router
	addr   atomic.Pointer[net.Addr]
	stopch chan bool
}

// New returns a new App instance. If cfg is nil, config.Default() is used.
func New(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}

	return &App{
		cfg:    cfg,
		stopch: make(chan bool, 1),
	}
}

// Logger replaces the logger, which is otherwise built from the config.
func (a *App) Logger(log logrus.FieldLogger) *App {
	a.log = log
	return a
}

// Content replaces the content store. By default, the directory from the config is used,
// or the embedded bundle, if no directory is set.
func (a *App) Content(store content.Store) *App {
	a.store = store
	return a
}

// Router replaces the router, which is otherwise built from the config.
func (a *App) Router(r *router.Router) *App {
	a.router = r
	return a
}

// NotifyOnStart calls the callback at the moment, when the listener is bound and the accept
// loop is about to start.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback at the moment, when the listener is closed and all the
// connections are done.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Serve binds the listener and serves until either ctx is done, one of the stop methods is
// called or accepting fails. Cancelling ctx is equivalent to GracefulStop. The returned
// error, if any, wraps either errors.ErrBind or errors.ErrAccept.
func (a *App) Serve(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	if err := a.init(); err != nil {
		return err
	}

	connCtx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	h := handler.New(a.cfg.NET, a.router, a.store, a.log)
	tcp := transport.NewTCP()
	sup := transport.NewSupervisor(a.log)
	err := sup.Add(a.cfg.NET.Addr(), tcp, func(conn net.Conn) {
		h.Serve(connCtx, conn)
	})
	if err != nil {
		return err
	}

	addr := tcp.Addr()
	a.addr.Store(&addr)
	a.log.WithFields(logrus.Fields{
		"addr":     addr.String(),
		"routes":   len(a.router.Routes()),
		"blocking": a.cfg.NET.Blocking,
	}).Info("listening")

	errch := make(chan error, 1)
	go func() {
		errch <- sup.Run(a.cfg.NET)
	}()

	callIfNotNil(a.hooks.OnStart)

	select {
	case err = <-errch:
		a.finish()

		return err
	case <-ctx.Done():
		a.log.WithField("inflight", tcp.Inflight()).Info("stopping gracefully")
	case hard := <-a.stopch:
		log := a.log.WithField("inflight", tcp.Inflight())
		if hard {
			log.Info("stopping")
			cancel(errors.ErrShutdown)
		} else {
			log.Info("stopping gracefully")
		}
	}

	stopped := make(chan struct{})
	go func() {
		sup.Stop()
		close(stopped)
	}()

	for waiting := true; waiting; {
		select {
		case <-stopped:
			waiting = false
		case hard := <-a.stopch:
			if hard {
				a.log.Info("abandoning in-flight connections")
				cancel(errors.ErrShutdown)
			}
		}
	}

	err = <-errch
	a.finish()

	return err
}

// GracefulStop stops accepting new connections, but lets the in-flight ones complete.
//
// NOTE: the call isn't blocking. So by that, after the method returned, the server
// will be still working
func (a *App) GracefulStop() {
	a.requestStop(false)
}

// Stop stops accepting new connections and abandons the in-flight ones: suspended
// connections are woken up and closed without a response.
//
// NOTE: the call isn't blocking. So by that, after the method returned, the server
// will still be working
func (a *App) Stop() {
	a.requestStop(true)
}

// Addr returns the bound address, or nil if the App isn't started yet.
func (a *App) Addr() net.Addr {
	if addr := a.addr.Load(); addr != nil {
		return *addr
	}

	return nil
}

func (a *App) requestStop(hard bool) {
	select {
	case a.stopch <- hard:
	default:
		if hard {
			// a graceful request is pending and not consumed yet. Replace it
			select {
			case <-a.stopch:
			default:
			}

			select {
			case a.stopch <- true:
			default:
			}
		}
	}
}

func (a *App) init() (err error) {
	if a.log == nil {
		if a.log, err = logging.New(a.cfg.Log); err != nil {
			return err
		}
	}

	if a.router == nil {
		if a.router, err = router.FromConfig(a.cfg.Routes); err != nil {
			return err
		}
	}

	if a.store == nil {
		if a.cfg.Content.Dir != "" {
			a.store = content.Dir(a.cfg.Content.Dir, a.cfg.Content.Extension)
		} else {
			a.store = content.Embedded()
		}
	}

	return nil
}

func (a *App) finish() {
	a.log.Info("stopped")
	callIfNotNil(a.hooks.OnStop)
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
