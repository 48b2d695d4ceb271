package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/indigo-web/responder/config"
	"github.com/indigo-web/responder/http/status"
)

// Route is a response recipe for a single request line.
type Route struct {
	// Line is the exact request line, e.g. "GET /hello HTTP/1.1".
	Line    string
	Status  status.Code
	Content string
	// Delay is the time the connection is suspended for after the route was matched and
	// before the response is written. Zero means no delay.
	Delay time.Duration
}

// Router maps request lines onto routes. It's immutable once constructed, so it's shared
// across all the connections without any synchronization.
type Router struct {
	routes   map[string]Route
	ordered  []Route
	fallback Route
}

// New builds a router. The fallback is returned for every request line that matches no
// route, including the absent one.
func New(fallback Route, routes ...Route) (*Router, error) {
	if err := validate(fallback); err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}

	if fallback.Delay != 0 {
		return nil, errors.New("fallback: must not be delayed")
	}

	fallback.Line = ""
	r := &Router{
		routes:   make(map[string]Route, len(routes)),
		ordered:  make([]Route, 0, len(routes)),
		fallback: fallback,
	}

	for _, route := range routes {
		if route.Line == "" {
			return nil, errors.New("route with an empty request line")
		}

		if _, ok := r.routes[route.Line]; ok {
			return nil, fmt.Errorf("route already registered: %q", route.Line)
		}

		if err := validate(route); err != nil {
			return nil, fmt.Errorf("%q: %w", route.Line, err)
		}

		r.routes[route.Line] = route
		r.ordered = append(r.ordered, route)
	}

	return r, nil
}

// FromConfig builds a router out of the routes section of the config.
func FromConfig(cfg config.Routes) (*Router, error) {
	fallback, err := fromConfig(cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}

	routes := make([]Route, len(cfg.Table))
	for i, route := range cfg.Table {
		if routes[i], err = fromConfig(route); err != nil {
			return nil, fmt.Errorf("%q: %w", route.Line, err)
		}
	}

	return New(fallback, routes...)
}

// Default returns the canonical table: a greeting, a deliberately slow page and the 404.
func Default(delay time.Duration) *Router {
	r, err := New(
		Route{Status: status.NotFound, Content: "404"},
		Route{Line: "GET /hello HTTP/1.1", Status: status.OK, Content: "hello"},
		Route{Line: "GET /sleep HTTP/1.1", Status: status.OK, Content: "sleep", Delay: delay},
	)
	if err != nil {
		panic(fmt.Errorf("BUG: default routes: %w", err))
	}

	return r
}

// Route returns the route matching the request line byte by byte. Empty line stands for
// the absent one and always results in the fallback.
func (r *Router) Route(line string) Route {
	if route, ok := r.routes[line]; ok {
		return route
	}

	return r.fallback
}

// Routes returns a copy of the table in registration order.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.ordered...)
}

func (r *Router) Fallback() Route {
	return r.fallback
}

func fromConfig(route config.Route) (Route, error) {
	code, err := status.Parse(route.Status)
	if err != nil {
		return Route{}, err
	}

	return Route{
		Line:    route.Line,
		Status:  code,
		Content: route.Content,
		Delay:   time.Duration(route.Delay),
	}, nil
}

func validate(route Route) error {
	switch {
	case !status.Valid(route.Status):
		return fmt.Errorf("unsupported status code: %d", route.Status)
	case route.Content == "":
		return errors.New("empty content key")
	case route.Delay < 0:
		return errors.New("negative delay")
	}

	return nil
}
