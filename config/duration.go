package config

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration, which is represented in the configuration file as a Go
// duration string ("10s", "1m30s"). Plain numbers are treated as nanoseconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] != '"' {
		ns, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("bad duration: %s", b)
		}

		*d = Duration(ns)
		return nil
	}

	str, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("bad duration: %s", b)
	}

	parsed, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(parsed)
	return nil
}
