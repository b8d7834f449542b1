// Package render contains the Renderer adapters: a plain console writer
// and a bridge into the Bubble Tea program.
package render

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/gaswatch/business/basefee/app"
	"github.com/fd1az/gaswatch/pkg/ui/components"
)

const clearScreen = "\033[H\033[2J"

// ConsoleRenderer writes each render as a boxed panel.
type ConsoleRenderer struct {
	out   io.Writer
	clear bool
	width int
	now   func() time.Time

	mu sync.Mutex
}

var _ app.Renderer = (*ConsoleRenderer)(nil)

// NewConsoleRenderer creates a renderer on stdout. When clear is set every
// render redraws the terminal instead of appending.
func NewConsoleRenderer(clear bool) *ConsoleRenderer {
	return newConsoleRenderer(os.Stdout, clear)
}

func newConsoleRenderer(out io.Writer, clear bool) *ConsoleRenderer {
	return &ConsoleRenderer{
		out:   out,
		clear: clear,
		width: 64,
		now:   time.Now,
	}
}

// Render implements app.Renderer.
func (r *ConsoleRenderer) Render(body, title string, emphasized bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clear {
		fmt.Fprint(r.out, clearScreen)
	} else {
		fmt.Fprintf(r.out, "[%s]\n", r.now().Format("15:04:05"))
	}
	fmt.Fprintln(r.out, components.Panel(body, title, emphasized, r.width))
}
