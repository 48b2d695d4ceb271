package config

import (
	"net"
	"strconv"
	"time"
)

type (
	Route struct {
		// Line is the exact request line the route is matched against, e.g. "GET /hello HTTP/1.1".
		// The comparison is case-sensitive.
		Line string `json:"line" test:"nullable"`
		// Status is the status code of the response. Only 200 and 404 are supported.
		Status int `json:"status"`
		// Content is the key, which is resolved against the content store.
		Content string `json:"content"`
		// Delay suspends the connection after the route was matched and before the
		// response is written.
		Delay Duration `json:"delay,omitempty" test:"nullable"`
	}
)

type (
	NET struct {
		// Host is the address or the interface the listener is bound to.
		Host string `json:"host"`
		// Port is the TCP port. Zero is allowed only when the listener is constructed
		// programmatically, e.g. in tests.
		Port uint16 `json:"port"`
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int `json:"read_buffer_size"`
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		ReadTimeout Duration `json:"read_timeout"`
		// WriteTimeout limits how long writing a single response may take.
		WriteTimeout Duration `json:"write_timeout"`
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod Duration `json:"accept_loop_interrupt_period"`
		// Blocking disables concurrent dispatch: every connection is served by the accept
		// loop itself, so the next one is accepted only after the previous is done.
		Blocking bool `json:"blocking" test:"nullable"`
	}

	Routes struct {
		// Table is the routing table. It is fixed once the application is started.
		Table []Route `json:"table"`
		// Fallback is used whenever no request line was received or it matched nothing.
		Fallback Route `json:"fallback"`
	}

	Content struct {
		// Dir is the directory holding the content. The embedded bundle is used if empty.
		Dir string `json:"dir" test:"nullable"`
		// Extension is appended to the content key in order to get the file name.
		Extension string `json:"extension"`
	}

	Log struct {
		// Level is one of logrus levels: panic, fatal, error, warn, info, debug, trace.
		Level string `json:"level"`
		// Format is either text or json.
		Format string `json:"format"`
		// Output is stderr, stdout or a path to the file, which is opened in append mode.
		Output string `json:"output"`
	}
)

// Config holds everything the responder needs to be started.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	NET     NET     `json:"net"`
	Routes  Routes  `json:"routes"`
	Content Content `json:"content"`
	Log     Log     `json:"log"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 7878
	// DefaultSleep is the artificial delay of the slow route.
	DefaultSleep = 10 * time.Second
)

// Default returns default config.
func Default() *Config {
	return &Config{
		NET: NET{
			Host:                      DefaultHost,
			Port:                      DefaultPort,
			ReadBufferSize:            2 * 1024,
			ReadTimeout:               Duration(90 * time.Second),
			WriteTimeout:              Duration(30 * time.Second),
			AcceptLoopInterruptPeriod: Duration(5 * time.Second),
		},
		Routes: Routes{
			Table: []Route{
				{
					Line:    "GET /hello HTTP/1.1",
					Status:  200,
					Content: "hello",
				},
				{
					Line:    "GET /sleep HTTP/1.1",
					Status:  200,
					Content: "sleep",
					Delay:   Duration(DefaultSleep),
				},
			},
			Fallback: Route{
				Status:  404,
				Content: "404",
			},
		},
		Content: Content{
			Extension: ".html",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Addr returns the host:port pair suitable for net.Listen.
func (n NET) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(int(n.Port)))
}

// SetDelay changes the delay of every route, which already has one.
func (r *Routes) SetDelay(delay time.Duration) {
	for i := range r.Table {
		if r.Table[i].Delay > 0 {
			r.Table[i].Delay = Duration(delay)
		}
	}
}
