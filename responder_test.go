package responder

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/indigo-web/responder/config"
	"github.com/indigo-web/responder/content"
	"github.com/indigo-web/responder/errors"
	"github.com/indigo-web/responder/http/status"
	"github.com/indigo-web/responder/internal/logging"
	"github.com/indigo-web/responder/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helloRequest = "GET /hello HTTP/1.1\r\nHost: localhost\r\nUser-Agent: test\r\n\r\n"
	sleepRequest = "GET /sleep HTTP/1.1\r\nHost: localhost\r\n\r\n"

	helloResponse    = "HTTP/1.1 200 OK\r\n\r\n<p>hello</p>"
	sleepResponse    = "HTTP/1.1 200 OK\r\n\r\n<p>sleep</p>"
	notFoundResponse = "HTTP/1.1 404 NOT FOUND\r\n\r\n<p>not found</p>"
)

func getConfig() *config.Config {
	cfg := config.Default()
	cfg.NET.Port = 0
	cfg.NET.AcceptLoopInterruptPeriod = config.Duration(50 * time.Millisecond)

	return cfg
}

func getStore() content.Store {
	return content.FromStrings(map[string]string{
		"hello": "<p>hello</p>",
		"sleep": "<p>sleep</p>",
		"404":   "<p>not found</p>",
	})
}

func getRouter(t *testing.T, delay time.Duration) *router.Router {
	r, err := router.New(
		router.Route{Status: status.NotFound, Content: "404"},
		router.Route{Line: "GET /hello HTTP/1.1", Status: status.OK, Content: "hello"},
		router.Route{Line: "GET /sleep HTTP/1.1", Status: status.OK, Content: "sleep", Delay: delay},
		router.Route{Line: "GET /broken HTTP/1.1", Status: status.OK, Content: "missing"},
	)
	require.NoError(t, err)

	return r
}

func getApp(t *testing.T, delay time.Duration) *App {
	return New(getConfig()).
		Logger(logging.Discard()).
		Content(getStore()).
		Router(getRouter(t, delay))
}

// run starts the app and blocks until it's listening
func run(t *testing.T, ctx context.Context, app *App) <-chan error {
	started := make(chan struct{})
	app.NotifyOnStart(func() {
		close(started)
	})

	errch := make(chan error, 1)
	go func() {
		errch <- app.Serve(ctx)
	}()

	select {
	case <-started:
	case err := <-errch:
		require.FailNow(t, "app failed to start", err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "app didn't start in time")
	}

	return errch
}

func wait(t *testing.T, errch <-chan error) error {
	select {
	case err := <-errch:
		return err
	case <-time.After(5 * time.Second):
		require.FailNow(t, "app didn't stop in time")
		return nil
	}
}

func dial(t *testing.T, app *App, request string) net.Conn {
	conn, err := net.Dial("tcp", app.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	return conn
}

func send(t *testing.T, app *App, request string) string {
	conn := dial(t, app, request)
	defer conn.Close()

	return readAll(t, conn)
}

func readAll(t *testing.T, conn net.Conn) string {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := io.ReadAll(conn)
	require.NoError(t, err)

	return string(data)
}

func TestApp(t *testing.T) {
	delay := 300 * time.Millisecond
	app := getApp(t, delay)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errch := run(t, ctx, app)

	t.Run("hello", func(t *testing.T) {
		require.Equal(t, helloResponse, send(t, app, helloRequest))
	})

	t.Run("repeated requests are byte-identical", func(t *testing.T) {
		first := send(t, app, helloRequest)
		for iter := 0; iter < 5; iter++ {
			require.Equal(t, first, send(t, app, helloRequest))
		}
	})

	t.Run("not found", func(t *testing.T) {
		for _, request := range []string{
			"GET /missing HTTP/1.1\r\n\r\n",
			"GET /hello HTTP/1.0\r\n\r\n",
			"get /hello HTTP/1.1\r\n\r\n",
			"GET /hello  HTTP/1.1\r\n\r\n",
			"POST /hello HTTP/1.1\r\n\r\n",
			"\r\n\r\n",
		} {
			require.Equal(t, notFoundResponse, send(t, app, request), strconv.Quote(request))
		}
	})

	t.Run("no line at all", func(t *testing.T) {
		conn, err := net.Dial("tcp", app.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())
		require.Equal(t, notFoundResponse, readAll(t, conn))
	})

	t.Run("line without blank-line terminator", func(t *testing.T) {
		conn := dial(t, app, "GET /hello HTTP/1.1\r\n")
		defer conn.Close()
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())
		require.Equal(t, notFoundResponse, readAll(t, conn))
	})

	t.Run("delay", func(t *testing.T) {
		start := time.Now()
		require.Equal(t, sleepResponse, send(t, app, sleepRequest))
		require.GreaterOrEqual(t, time.Since(start), delay)
	})

	t.Run("slow connection doesn't block fast ones", func(t *testing.T) {
		slow := dial(t, app, sleepRequest)
		defer slow.Close()

		var (
			wg       sync.WaitGroup
			slowDone time.Time
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = slow.SetReadDeadline(time.Now().Add(5 * time.Second))
			data, _ := io.ReadAll(slow)
			slowDone = time.Now()
			assert.Equal(t, sleepResponse, string(data))
		}()

		// let the slow connection be accepted first
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, helloResponse, send(t, app, helloRequest))
		fastDone := time.Now()
		wg.Wait()
		require.True(t, fastDone.Before(slowDone))
	})

	t.Run("inconsistent content", func(t *testing.T) {
		require.Empty(t, send(t, app, "GET /broken HTTP/1.1\r\n\r\n"))
		// the server must keep serving
		require.Equal(t, helloResponse, send(t, app, helloRequest))
	})

	cancel()
	require.NoError(t, wait(t, errch))
}

func TestEmbedded(t *testing.T) {
	app := New(getConfig()).Logger(logging.Discard())
	errch := run(t, context.Background(), app)

	hello, err := content.Embedded().Lookup("hello")
	require.NoError(t, err)
	notFound, err := content.Embedded().Lookup("404")
	require.NoError(t, err)

	require.Equal(t, "HTTP/1.1 200 OK\r\n\r\n"+string(hello), send(t, app, helloRequest))
	require.Equal(t, "HTTP/1.1 404 NOT FOUND\r\n\r\n"+string(notFound), send(t, app, "GET / HTTP/1.1\r\n\r\n"))

	app.GracefulStop()
	require.NoError(t, wait(t, errch))
}

func TestBlocking(t *testing.T) {
	delay := 200 * time.Millisecond
	cfg := getConfig()
	cfg.NET.Blocking = true
	app := New(cfg).
		Logger(logging.Discard()).
		Content(getStore()).
		Router(getRouter(t, delay))
	errch := run(t, context.Background(), app)

	slow := dial(t, app, sleepRequest)
	defer slow.Close()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	require.Equal(t, helloResponse, send(t, app, helloRequest))
	// the fast connection had to wait for the slow one
	require.GreaterOrEqual(t, time.Since(start), delay/2)
	require.Equal(t, sleepResponse, readAll(t, slow))

	app.GracefulStop()
	require.NoError(t, wait(t, errch))
}

func TestBindError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := getConfig()
	cfg.NET.Port = uint16(l.Addr().(*net.TCPAddr).Port)
	var started bool
	app := New(cfg).
		Logger(logging.Discard()).
		NotifyOnStart(func() {
			started = true
		})

	err = app.Serve(context.Background())
	require.ErrorIs(t, err, errors.ErrBind)
	require.False(t, started)
	require.Nil(t, app.Addr())
}

func TestInvalidConfig(t *testing.T) {
	cfg := getConfig()
	cfg.Routes.Fallback.Content = ""
	err := New(cfg).Logger(logging.Discard()).Serve(context.Background())
	require.Error(t, err)
}

func TestStop(t *testing.T) {
	t.Run("graceful", func(t *testing.T) {
		var stopped bool
		app := getApp(t, 300*time.Millisecond).NotifyOnStop(func() {
			stopped = true
		})
		errch := run(t, context.Background(), app)

		conn := dial(t, app, sleepRequest)
		defer conn.Close()
		time.Sleep(50 * time.Millisecond)
		app.GracefulStop()

		require.Equal(t, sleepResponse, readAll(t, conn))
		require.NoError(t, wait(t, errch))
		require.True(t, stopped)

		_, err := net.DialTimeout("tcp", app.Addr().String(), time.Second)
		require.Error(t, err)
	})

	t.Run("hard stop abandons suspended connections", func(t *testing.T) {
		app := getApp(t, time.Hour)
		errch := run(t, context.Background(), app)

		conn := dial(t, app, sleepRequest)
		defer conn.Close()
		time.Sleep(50 * time.Millisecond)

		start := time.Now()
		app.Stop()
		require.NoError(t, wait(t, errch))
		require.Less(t, time.Since(start), 5*time.Second)

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		data, _ := io.ReadAll(conn)
		require.Empty(t, data)
	})

	t.Run("hard stop escalates graceful one", func(t *testing.T) {
		app := getApp(t, time.Hour)
		errch := run(t, context.Background(), app)

		conn := dial(t, app, sleepRequest)
		defer conn.Close()
		time.Sleep(50 * time.Millisecond)

		app.GracefulStop()
		time.Sleep(50 * time.Millisecond)
		app.Stop()
		require.NoError(t, wait(t, errch))
	})

	t.Run("context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		app := getApp(t, 0)
		errch := run(t, ctx, app)
		require.Equal(t, helloResponse, send(t, app, helloRequest))
		cancel()
		require.NoError(t, wait(t, errch))
	})
}
