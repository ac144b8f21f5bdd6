// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// New returns a timestamped logger writing to w at the given level.
// With console set, output is human-readable instead of JSON lines.
// Every extra writer receives the JSON lines as well.
func New(w io.Writer, level string, console bool, extra ...io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if console {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	if len(extra) > 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{out}, extra...)...)
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// GELF opens a Graylog writer sending to the UDP address addr.
func GELF(addr string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("gelf writer %s: %w", addr, err)
	}
	return w, nil
}
