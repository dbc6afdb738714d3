// Package iocontext carries a command's terminal streams in its context so
// long-running commands and tests can swap them.
package iocontext

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// IO holds the input/output streams for commands.
type IO struct {
	Out    io.Writer // stdout
	ErrOut io.Writer // stderr
	In     io.Reader // stdin
}

// DefaultIO returns the process streams as they are at call time.
func DefaultIO() *IO {
	return &IO{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		In:     os.Stdin,
	}
}

// Clone returns a shallow copy; missing streams are filled from DefaultIO.
func (s *IO) Clone() *IO {
	def := DefaultIO()
	out := *s
	if out.Out == nil {
		out.Out = def.Out
	}
	if out.ErrOut == nil {
		out.ErrOut = def.ErrOut
	}
	if out.In == nil {
		out.In = def.In
	}
	return &out
}

// IsTerminal reports whether w is a character device, so screen-clearing
// escapes are safe to write.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Prompt writes label to ErrOut and reads one line from In, without the
// trailing newline.
func (s *IO) Prompt(label string) (string, error) {
	if label != "" {
		_, _ = fmt.Fprint(s.ErrOut, label)
	}
	line, err := bufio.NewReader(s.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type ioKey struct{}

// WithIO adds IO streams to a context.
func WithIO(ctx context.Context, streams *IO) context.Context {
	return context.WithValue(ctx, ioKey{}, streams)
}

// GetIO retrieves IO streams from context, defaulting to standard streams.
func GetIO(ctx context.Context) *IO {
	if streams, ok := ctx.Value(ioKey{}).(*IO); ok && streams != nil {
		return streams
	}
	return DefaultIO()
}
