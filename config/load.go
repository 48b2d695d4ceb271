package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/indigo-web/responder/http/status"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// Load reads the JSON file at path on top of the defaults. Fields which are absent in the
// file keep their default values, however the routing table, if presented, replaces the
// default one completely.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer file.Close()

	if err = json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Encode renders the config back into JSON. Used mostly to dump the effective config.
func (c *Config) Encode() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate checks whether the config can be used to start the application.
func (c *Config) Validate() error {
	if c.NET.Host == "" {
		return errors.New("config: empty host")
	}

	if c.NET.ReadBufferSize <= 0 {
		return errors.New("config: read buffer size must be positive")
	}

	seen := make(map[string]struct{}, len(c.Routes.Table))
	for _, route := range c.Routes.Table {
		if route.Line == "" {
			return errors.New("config: route with an empty request line")
		}

		if _, ok := seen[route.Line]; ok {
			return fmt.Errorf("config: route already registered: %q", route.Line)
		}

		seen[route.Line] = struct{}{}

		if err := validateRoute(route); err != nil {
			return fmt.Errorf("config: %q: %w", route.Line, err)
		}
	}

	if err := validateRoute(c.Routes.Fallback); err != nil {
		return fmt.Errorf("config: fallback: %w", err)
	}

	if c.Routes.Fallback.Delay != 0 {
		return errors.New("config: fallback must not be delayed")
	}

	return nil
}

func validateRoute(route Route) error {
	if _, err := status.Parse(route.Status); err != nil {
		return err
	}

	if route.Content == "" {
		return errors.New("empty content key")
	}

	if route.Delay < 0 {
		return errors.New("negative delay")
	}

	return nil
}

// UnmarshalJSON decodes the routing table into fresh elements, so routes of the file never
// inherit fields of the default ones. An absent table keeps the current one.
func (r *Routes) UnmarshalJSON(b []byte) error {
	type plain Routes
	fresh := plain{Fallback: r.Fallback}
	if err := json.Unmarshal(b, &fresh); err != nil {
		return err
	}

	if fresh.Table == nil {
		fresh.Table = r.Table
	}

	*r = Routes(fresh)
	return nil
}
