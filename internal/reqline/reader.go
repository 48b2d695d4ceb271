package reqline

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/indigo-web/responder/errors"
	"github.com/indigo-web/responder/transport"
	"github.com/indigo-web/utils/uf"
)

type readerState uint8

const (
	eLine readerState = iota + 1
	eHeaders
)

// Reader extracts the first line of a request. Everything after it, up to and including
// the blank line, is read and thrown away. Bytes past the blank line are pushed back to
// the client.
type Reader struct {
	client transport.Client
	line   []byte
	state  readerState
	// blank is true while the header line being drained contains only whitespaces
	blank bool
}

func NewReader(client transport.Client) *Reader {
	return &Reader{
		client: client,
		state:  eLine,
		blank:  true,
	}
}

// Read returns the first line with the trailing terminator stripped. If the stream ends
// before the blank line or the first line is blank, errors.ErrNoRequestLine is returned.
// Any other read failure is wrapped into errors.ErrRead.
//
// The returned string refers to the Reader's memory and stays valid until Reset.
func (r *Reader) Read() (string, error) {
	for {
		data, err := r.client.Read()
		if len(data) > 0 {
			done, extra, perr := r.parse(data)
			if perr != nil {
				return "", perr
			}

			if done {
				r.client.Pushback(extra)
				return uf.B2S(r.line), nil
			}
		}

		if err != nil {
			return r.fail(err)
		}
	}
}

func (r *Reader) fail(err error) (string, error) {
	if !stderrors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %w", errors.ErrRead, err)
	}

	// the request was cut before the blank line, so it's incomplete regardless of how far
	// it got
	return "", errors.ErrNoRequestLine
}

func (r *Reader) parse(data []byte) (done bool, extra []byte, err error) {
	switch r.state {
	case eLine:
		goto line
	case eHeaders:
		goto headers
	default:
		panic(fmt.Sprintf("BUG: unexpected state: %v", r.state))
	}

line:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			r.line = append(r.line, data...)
			return false, nil, nil
		}

		r.line = append(r.line, data[:lf]...)
		r.line = bytes.TrimSuffix(r.line, []byte{'\r'})
		data = data[lf+1:]

		if isBlank(r.line) {
			// the header section is over before it started
			r.client.Pushback(data)
			return false, nil, errors.ErrNoRequestLine
		}

		r.state = eHeaders
		r.blank = true
		goto headers
	}

headers:
	for {
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			r.blank = r.blank && isBlank(data)
			return false, nil, nil
		}

		r.blank = r.blank && isBlank(data[:lf])
		data = data[lf+1:]

		if r.blank {
			return true, data, nil
		}

		r.blank = true
	}
}

// Reset prepares the reader for the next request, reusing the memory.
func (r *Reader) Reset() {
	r.line = r.line[:0]
	r.state = eLine
	r.blank = true
}

func isBlank(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r':
		default:
			return false
		}
	}

	return true
}
