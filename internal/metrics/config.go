package metrics

import "codeberg.org/mutker/framegov/internal/errors"

const (
	defaultListen = "127.0.0.1:9464"
	defaultPath   = "/metrics"
)

type Config struct {
	Enabled bool
	Listen  string
	Path    string
}

func DefaultConfig() Config {
	return Config{
		Listen:  defaultListen,
		Path:    defaultPath,
		Enabled: false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the endpoint if metrics is enabled
	if !c.Enabled {
		return nil
	}
	if c.Listen == "" {
		return errFactory.New(ErrInvalidListen)
	}
	if c.Path == "" || c.Path[0] != '/' {
		return errFactory.WithData(ErrInvalidPath, c.Path)
	}
	return nil
}
