package dummy

import (
	"io"
	"net"

	"github.com/indigo-web/responder/transport"
)

var _ transport.Client = new(Client)

// Client returns the data it was initialised with piece by piece, and then io.EOF (or the
// error set via Err.) It also tracks all the written data, making it thereby a universal mock
// suitable for most of the tests.
type Client struct {
	closed      bool
	writeClosed bool
	loop        bool
	journaling  bool
	pointer     int
	tmp         []byte
	written     []byte
	data        [][]byte
	readErr     error
	writeErr    error
}

func NewMockClient(data ...[]byte) *Client {
	return &Client{
		data:       data,
		pointer:    0,
		journaling: true,
		readErr:    io.EOF,
	}
}

func (c *Client) Read() (data []byte, err error) {
	if c.closed {
		return nil, io.EOF
	}

	if len(c.tmp) > 0 {
		data, c.tmp = c.tmp, nil

		return data, nil
	}

	if c.pointer >= len(c.data) {
		if !c.loop || len(c.data) == 0 {
			return nil, c.readErr
		}

		c.pointer = 0
	}

	piece := c.data[c.pointer]
	c.pointer++

	return piece, nil
}

func (c *Client) Pushback(takeback []byte) {
	c.tmp = takeback
}

func (c *Client) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}

	if c.journaling {
		c.written = append(c.written, p...)
	}

	return len(p), nil
}

func (c *Client) CloseWrite() error {
	c.writeClosed = true
	return nil
}

func (c *Client) Conn() net.Conn {
	return new(Conn).Nop()
}

func (*Client) Remote() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 65535}
}

func (c *Client) Close() error {
	c.closed = true
	return nil
}

// LoopReads makes the client start over once the data is exhausted.
func (c *Client) LoopReads() *Client {
	c.loop = true
	return c
}

// Err sets the error returned once the data is exhausted. Defaults to io.EOF.
func (c *Client) Err(err error) *Client {
	c.readErr = err
	return c
}

// FailWrites makes every write fail with the error.
func (c *Client) FailWrites(err error) *Client {
	c.writeErr = err
	return c
}

func (c *Client) Journaling(flag bool) *Client {
	c.journaling = flag
	return c
}

func (c *Client) Written() string {
	if !c.journaling {
		panic("mock client: cannot access written data: journaling is disabled!")
	}

	return string(c.written)
}

func (c *Client) Closed() bool {
	return c.closed
}

func (c *Client) WriteClosed() bool {
	return c.writeClosed
}
