package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// spinnerOut receives spinner frames. Kept off console so captured command
// output stays free of control characters.
var spinnerOut io.Writer = os.Stderr

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerTick = 80 * time.Millisecond

// spinner animates a status line while a layout or render step runs. The
// animation stops on stop or when ctx is cancelled, whichever comes first.
type spinner struct {
	w       io.Writer
	message string
	ctx     context.Context

	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu    sync.Mutex
	frame int
}

func startSpinner(ctx context.Context, message string) *spinner {
	s := &spinner{
		w:       spinnerOut,
		message: message,
		ctx:     ctx,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *spinner) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			s.mu.Lock()
			f := spinnerFrames[s.frame%len(spinnerFrames)]
			s.frame++
			fmt.Fprintf(s.w, "\r%s %s", styleSpinner.Render(f), StyleDim.Render(s.message))
			s.mu.Unlock()
		}
	}
}

// stop ends the animation and clears its line. Safe to call more than once.
func (s *spinner) stop() {
	s.once.Do(func() { close(s.quit) })
	<-s.stopped

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame > 0 {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
	}
}

// frames reports how many frames were drawn.
func (s *spinner) frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// cancelled reports whether the command's context ended before stop.
func (s *spinner) cancelled() bool {
	return s.ctx.Err() != nil
}
