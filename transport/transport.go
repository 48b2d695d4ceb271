package transport

import (
	"net"

	"github.com/indigo-web/responder/config"
)

// Transport is a bound listener, which dispatches every accepted connection to the callback.
type Transport interface {
	Bind(addr string) error
	Listen(cfg config.NET, cb func(conn net.Conn)) error
	Stop()
	Close()
	Wait()
}
