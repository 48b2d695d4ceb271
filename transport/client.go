package transport

import (
	"io"
	"net"
	"time"
)

type Client interface {
	Read() ([]byte, error)
	Pushback([]byte)
	Write([]byte) (int, error)
	CloseWrite() error
	Conn() net.Conn
	Remote() net.Addr
	Close() error
}

type client struct {
	conn         net.Conn
	buff         []byte
	pending      []byte
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewClient wraps the connection. Zero timeouts disable the corresponding deadlines.
func NewClient(conn net.Conn, readTimeout, writeTimeout time.Duration, buff []byte) Client {
	return &client{
		buff:         buff,
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Read reads data into the internal buffer and returns a piece of it back. Timeouts are also
// handled automatically.
func (c *client) Read() ([]byte, error) {
	if len(c.pending) > 0 {
		pending := c.pending
		c.pending = nil

		return pending, nil
	}

	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}

	n, err := c.conn.Read(c.buff)
	return c.buff[:n], err
}

// Pushback preserves a chunk of data from previous read for the next read.
func (c *client) Pushback(b []byte) {
	c.pending = b
}

// Conn unwraps the underlying net.Conn.
func (c *client) Conn() net.Conn {
	return c.conn
}

// Write writes the whole b into the connection, repeating short writes until either
// everything is written or an error occurs.
func (c *client) Write(b []byte) (n int, err error) {
	if c.writeTimeout > 0 {
		if err = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}

	for n < len(b) {
		var m int
		m, err = c.conn.Write(b[n:])
		n += m

		switch {
		case err != nil:
			return n, err
		case m == 0:
			return n, io.ErrShortWrite
		}
	}

	return n, nil
}

type halfCloser interface {
	CloseWrite() error
}

// CloseWrite shuts down the outbound side of the connection, if the connection supports
// it. Otherwise, it's no-op.
func (c *client) CloseWrite() error {
	if hc, ok := c.conn.(halfCloser); ok {
		return hc.CloseWrite()
	}

	return nil
}

// Remote returns the remote address of the connection.
func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the connection.
func (c *client) Close() error {
	return c.conn.Close()
}
