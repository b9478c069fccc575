package trigger

import (
	"context"
	"io"
	"os"

	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const ctrlC = 0x03

// KeyReader maps keys read from a terminal to button presses. When the
// input is a TTY it is switched to raw mode so single keystrokes arrive
// without Enter.
type KeyReader struct {
	in       io.Reader
	source   *EventSource
	bindings map[byte]string
	quit     byte
	logger   zerolog.Logger
}

// NewKeyReader creates a KeyReader. bindings maps a key to a button name;
// quit ends Run. Ctrl-C always ends Run.
func NewKeyReader(in io.Reader, source *EventSource, bindings map[byte]string, quit byte) *KeyReader {
	return &KeyReader{
		in:       in,
		source:   source,
		bindings: bindings,
		quit:     quit,
		logger:   logging.Component("keys"),
	}
}

// Run reads keys until the quit key, EOF, or ctx is done.
//
// A Read cannot be interrupted, so when Run returns because of ctx or the
// quit key, the reading goroutine stays blocked until in yields data or an
// error. Callers that own in should close it after Run returns; the
// goroutine then exits without delivering further keys.
func (k *KeyReader) Run(ctx context.Context) error {
	if f, ok := k.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return err
		}
		defer func() {
			if err := term.Restore(int(f.Fd()), state); err != nil {
				k.logger.Warn().Err(err).Msg("restore terminal")
			}
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make(chan byte)
	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := k.in.Read(buf)
			if n > 0 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err == io.EOF {
				return nil
			}
			return err
		case key := <-keys:
			if k.handle(key) {
				return nil
			}
		}
	}
}

// handle processes one key and reports whether reading should stop.
func (k *KeyReader) handle(key byte) bool {
	if key == k.quit || key == ctrlC {
		return true
	}
	if button, ok := k.bindings[key]; ok {
		k.logger.Debug().Str("button", button).Msg("key pressed")
		k.source.Press(button)
	}
	return false
}
