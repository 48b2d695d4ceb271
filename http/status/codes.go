package status

import "fmt"

type Code uint16

const (
	OK       Code = 200
	NotFound Code = 404
)

// KnownCodes lists every code a response can be rendered with.
var KnownCodes = []Code{OK, NotFound}

const protocol = "HTTP/1.1"

// Line returns the complete status line for the code without the trailing CRLF. Codes
// outside KnownCodes result in an empty string.
func Line(code Code) string {
	switch code {
	case OK:
		return protocol + " 200 OK"
	case NotFound:
		return protocol + " 404 NOT FOUND"
	default:
		return ""
	}
}

// Valid reports whether a response can be rendered with the code.
func Valid(code Code) bool {
	return Line(code) != ""
}

// Parse converts a plain integer, usually coming from a configuration file, into a Code.
func Parse(code int) (Code, error) {
	if code < 0 || code > 0xffff || !Valid(Code(code)) {
		return 0, fmt.Errorf("unsupported status code: %d", code)
	}

	return Code(code), nil
}

func (c Code) String() string {
	return Line(c)
}
