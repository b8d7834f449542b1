package render

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/gaswatch/business/basefee/app"
	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/pkg/ui"
)

// TUIRenderer forwards renders and status signals to the Bubble Tea program.
type TUIRenderer struct {
	send func(tea.Msg)
}

var (
	_ app.Renderer       = (*TUIRenderer)(nil)
	_ app.StatusObserver = (*TUIRenderer)(nil)
)

// NewTUIRenderer creates a renderer that sends to the running ui.Program.
func NewTUIRenderer() *TUIRenderer {
	return &TUIRenderer{send: ui.Send}
}

// Render implements app.Renderer.
func (r *TUIRenderer) Render(body, title string, emphasized bool) {
	r.send(ui.RenderMsg{
		Body:       body,
		Title:      title,
		Emphasized: emphasized,
		At:         time.Now(),
	})
}

// OnConnectionStatus implements app.StatusObserver.
func (r *TUIRenderer) OnConnectionStatus(state domain.ConnectionState, attempt int, endpoint string) {
	r.send(ui.ConnectionStatusMsg{
		State:    string(state),
		Attempt:  attempt,
		Endpoint: endpoint,
	})
}

// OnStale implements app.StatusObserver.
func (r *TUIRenderer) OnStale() {
	r.send(ui.StaleMsg{})
}

// OnError implements app.StatusObserver.
func (r *TUIRenderer) OnError(err error) {
	r.send(ui.ErrorMsg{Error: err})
}
