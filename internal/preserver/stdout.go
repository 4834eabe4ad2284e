// Package preserver holds repositories that keep archives outside blob
// storage.
package preserver

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Stdout writes every archive to a stream instead of storing it, each
// preceded by a header line naming its key. It backs dry runs.
type Stdout struct {
	w io.Writer
}

func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

func (s *Stdout) Write(ctx context.Context, key string, reader io.Reader) error {
	if _, err := fmt.Fprintf(s.w, "==> %s <==\n", key); err != nil {
		return err
	}
	_, err := io.Copy(s.w, reader)
	return err
}
