package dummy

import (
	"bytes"
	"net"
	"time"
)

var _ net.Conn = new(Conn)

// Conn is an in-memory net.Conn. Reads are served from the data passed into NewConn, writes
// are journaled into Data unless the connection is Nop.
type Conn struct {
	Data        []byte
	in          *bytes.Reader
	nop         bool
	closed      bool
	writeClosed bool
}

func NewConn(in []byte) *Conn {
	return &Conn{in: bytes.NewReader(in)}
}

func (c *Conn) Read(b []byte) (n int, err error) {
	if c.in == nil {
		c.in = bytes.NewReader(nil)
	}

	return c.in.Read(b)
}

func (c *Conn) Write(b []byte) (n int, err error) {
	if c.closed || c.writeClosed {
		return 0, net.ErrClosed
	}

	if !c.nop {
		c.Data = append(c.Data, b...)
	}

	return len(b), nil
}

func (c *Conn) CloseWrite() error {
	c.writeClosed = true
	return nil
}

func (c *Conn) Close() error {
	c.closed = true
	return nil
}

func (c *Conn) Closed() bool {
	return c.closed
}

func (c *Conn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7878}
}

func (c *Conn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 65535}
}

func (c *Conn) SetDeadline(time.Time) error {
	return nil
}

func (c *Conn) SetReadDeadline(time.Time) error {
	return nil
}

func (c *Conn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *Conn) Nop() *Conn {
	c.nop = true
	return c
}
