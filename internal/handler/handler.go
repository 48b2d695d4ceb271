package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/responder/config"
	"github.com/indigo-web/responder/content"
	"github.com/indigo-web/responder/errors"
	"github.com/indigo-web/responder/http/status"
	"github.com/indigo-web/responder/internal/reqline"
	"github.com/indigo-web/responder/router"
	"github.com/indigo-web/responder/transport"
	"github.com/sirupsen/logrus"
)

const connIDLength = 8

var headSeparator = []byte("\r\n\r\n")

// Handler serves exactly one request per connection. Every failure is reported via the
// logger and never leaves the handler.
type Handler struct {
	cfg    config.NET
	router *router.Router
	store  content.Store
	log    logrus.FieldLogger
}

func New(cfg config.NET, r *router.Router, store content.Store, log logrus.FieldLogger) *Handler {
	return &Handler{
		cfg:    cfg,
		router: r,
		store:  store,
		log:    log,
	}
}

// Serve is the transport callback. Cancelling ctx aborts the artificial delay and any
// pending I/O on the connection.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	client := transport.NewClient(
		conn,
		time.Duration(h.cfg.ReadTimeout),
		time.Duration(h.cfg.WriteTimeout),
		make([]byte, h.cfg.ReadBufferSize),
	)
	h.Handle(ctx, client)
}

// Handle reads the request line, routes it and writes the response back. The client is
// always closed on return.
func (h *Handler) Handle(ctx context.Context, client transport.Client) {
	log := h.log.WithFields(logrus.Fields{
		"conn":   uniuri.NewLen(connIDLength),
		"remote": remote(client),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("handler panicked")
		}

		_ = client.Close()
	}()

	log.Debug("connection established")

	line, err := readLine(client)
	if err != nil {
		report(log, interrupted(ctx, err))
		return
	}

	route := h.router.Route(line)
	log = log.WithFields(logrus.Fields{
		"line":   line,
		"status": int(route.Status),
	})

	if err = h.respond(ctx, client, route, log); err != nil {
		report(log, interrupted(ctx, err))
		return
	}

	log.Debug("connection served")
}

// readLine returns an empty line if the client sent nothing meaningful.
func readLine(client transport.Client) (string, error) {
	line, err := reqline.NewReader(client).Read()
	if stderrors.Is(err, errors.ErrNoRequestLine) {
		return "", nil
	}

	return line, err
}

func (h *Handler) respond(
	ctx context.Context, client transport.Client, route router.Route, log *logrus.Entry,
) error {
	if route.Delay > 0 {
		log.WithField("delay", route.Delay).Debug("suspending")

		if err := sleep(ctx, route.Delay); err != nil {
			return err
		}
	}

	body, err := h.store.Lookup(route.Content)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", errors.ErrContentLookup, route.Content, err)
	}

	if _, err = client.Write(render(route.Status, body)); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrWrite, err)
	}

	if err = client.CloseWrite(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrWrite, err)
	}

	return nil
}

// render concatenates the status line with the body.
func render(code status.Code, body []byte) []byte {
	line := status.Line(code)
	buff := make([]byte, 0, len(line)+len(headSeparator)+len(body))
	buff = append(buff, line...)
	buff = append(buff, headSeparator...)

	return append(buff, body...)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrShutdown, context.Cause(ctx))
	}
}

// interrupted marks I/O errors caused by the deadline, which was forced on shutdown.
func interrupted(ctx context.Context, err error) error {
	if ctx.Err() == nil || stderrors.Is(err, errors.ErrShutdown) {
		return err
	}

	return fmt.Errorf("%w: %w", errors.ErrShutdown, err)
}

func report(log *logrus.Entry, err error) {
	switch {
	case stderrors.Is(err, errors.ErrShutdown):
		log.WithError(err).Debug("connection abandoned")
	case stderrors.Is(err, errors.ErrContentLookup):
		log.WithError(err).Error("inconsistent configuration: closing without response")
	case stderrors.Is(err, errors.ErrRead):
		log.WithError(err).Warn("dropping connection")
	case stderrors.Is(err, errors.ErrWrite):
		log.WithError(err).Warn("response is not delivered")
	default:
		log.WithError(err).Error("unexpected error")
	}
}

func remote(client transport.Client) string {
	if addr := client.Remote(); addr != nil {
		return addr.String()
	}

	return "unknown"
}
