package errors

import (
	"errors"
)

var (
	// ErrBind is returned when the listening socket can't be resolved or bound. It is always
	// fatal: nothing is accepted after it.
	ErrBind = errors.New("cannot bind the listener")
	// ErrAccept terminates the acceptor loop.
	ErrAccept = errors.New("cannot accept a connection")

	ErrRead          = errors.New("cannot read the request")
	ErrNoRequestLine = errors.New("no request line")
	ErrContentLookup = errors.New("content of the matched route is unresolvable")
	ErrWrite         = errors.New("cannot write the response")

	ErrShutdown = errors.New("shutdown")
)
