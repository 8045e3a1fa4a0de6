package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siotlab/bdsc/internal/report"
)

type fakePresser struct {
	mu      sync.Mutex
	pressed []string
	err     error
}

func (f *fakePresser) Press(pin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = append(f.pressed, pin)
	return f.err
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func testPanel(p Presser) PanelModel {
	m := NewPanel(PanelConfig{
		Identity: "02:42:44:53:43:01",
		Endpoint: "127.0.0.1:6999 (iotserver2 via dns)",
		Buttons: []Button{
			{Name: "inquiry", Pin: "MB0"},
			{Name: "update", Pin: "MB1"},
		},
		Presser: p,
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(PanelModel)
}

// collectPress runs the press command out of the batch returned for a key
func collectPress(t *testing.T, cmd tea.Cmd) pressResultMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			// the flash tick sleeps; only the first command is the press
			return c().(pressResultMsg)
		}
	}
	return msg.(pressResultMsg)
}

func TestPanel_KeyPressesButton(t *testing.T) {
	p := &fakePresser{}
	m := testPanel(p)

	updated, cmd := m.Update(keyRune('2'))
	m = updated.(PanelModel)
	assert.Equal(t, "MB1", m.flash)

	res := collectPress(t, cmd)
	assert.NoError(t, res.err)
	assert.Equal(t, []string{"MB1"}, p.pressed)

	updated, _ = m.Update(flashClearMsg{pin: "MB1"})
	assert.Empty(t, updated.(PanelModel).flash)
}

func TestPanel_KeyOutOfRangeIgnored(t *testing.T) {
	p := &fakePresser{}
	m := testPanel(p)

	_, cmd := m.Update(keyRune('5'))
	assert.Nil(t, cmd)
	assert.Empty(t, p.pressed)
}

func TestPanel_PressErrorShown(t *testing.T) {
	m := testPanel(&fakePresser{})
	updated, _ := m.Update(pressResultMsg{button: Button{Name: "update", Pin: "MB1"}, err: errors.New("device closed")})
	m = updated.(PanelModel)
	assert.Contains(t, m.View(), "device closed")
}

func TestPanel_ServerResponseUpdatesRegister(t *testing.T) {
	m := testPanel(nil)
	assert.Contains(t, m.View(), "No register values yet")

	e := report.NewEvent(report.LevelSuccess, "update", "Server Response = A-BDSC-024244534301-10-0001")
	updated, cmd := m.Update(eventMsg(e))
	m = updated.(PanelModel)
	assert.Nil(t, cmd, "nil event channel yields no follow-up wait")

	view := m.View()
	assert.Contains(t, view, "reg 10 = 0001 (ack)")
	assert.Contains(t, view, "Server Response")
}

func TestPanel_UnparsedResponseStillLogged(t *testing.T) {
	m := testPanel(nil)
	e := report.NewEvent(report.LevelSuccess, "update", "Server Response = hello there")
	updated, _ := m.Update(eventMsg(e))
	m = updated.(PanelModel)
	assert.Empty(t, m.registers)
	assert.Contains(t, m.View(), "hello there")
}

func TestPanel_EventBacklogIsBounded(t *testing.T) {
	m := NewPanel(PanelConfig{MaxEvents: 3})
	for i := 0; i < 5; i++ {
		updated, _ := m.Update(eventMsg(report.NewEvent(report.LevelInfo, "", strings.Repeat("x", i+1))))
		m = updated.(PanelModel)
	}
	assert.Len(t, m.lines, 3)
}

func TestPanel_WaitsOnEventChannel(t *testing.T) {
	ch := make(chan report.Event, 1)
	m := NewPanel(PanelConfig{Events: ch})

	initCmd := m.Init()
	require.NotNil(t, initCmd)
	batch, ok := initCmd().(tea.BatchMsg)
	require.True(t, ok)
	require.Len(t, batch, 2)

	ch <- report.NewEvent(report.LevelInfo, "client", "MAC address = 02:42:44:53:43:01")
	msg := batch[0]()
	assert.Equal(t, "MAC address = 02:42:44:53:43:01", report.Event(msg.(eventMsg)).Text)

	close(ch)
	updated, next := m.Update(msg)
	require.NotNil(t, next)
	updated, _ = updated.Update(next())
	assert.True(t, updated.(PanelModel).closed)
}

func TestPanel_HelpAndQuit(t *testing.T) {
	m := testPanel(nil)

	updated, _ := m.Update(keyRune('?'))
	assert.True(t, updated.(PanelModel).help.ShowAll)

	_, cmd := updated.Update(keyRune('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHeader_RenderKeepsParamOrder(t *testing.T) {
	h := NewHeader("send", "bdsc-client send read 0x10",
		Param{Key: "Server", Value: "127.0.0.1:6999"},
		Param{Key: "Frame", Value: "R-BDSC-024244534301-10"},
	)
	out := h.Render()
	assert.Contains(t, out, "SEND")
	assert.Less(t, strings.Index(out, "Server:"), strings.Index(out, "Frame:"))
}

func TestResult_Render(t *testing.T) {
	var buf strings.Builder
	pr := NewPrinter(&buf)

	pr.PrintResult(NewSuccessResult("Exchange completed", Param{Key: "Reply", Value: "A-BDSC"}))
	assert.Contains(t, buf.String(), "SUCCESS")
	assert.Contains(t, buf.String(), "A-BDSC")

	buf.Reset()
	pr.PrintResult(NewFailureResult("Exchange failed", errors.New("no reply"), []string{"check the server"}))
	out := buf.String()
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "no reply")
	assert.Contains(t, out, "check the server")
}

func TestPanel_TracksExchangesInFlight(t *testing.T) {
	m := testPanel(nil)

	prepared := report.NewEvent(report.LevelInfo, "update", "Prepared Message = W-BDSC-024244534301-10-0000")
	prepared.ExchangeID = "x1"
	updated, _ := m.Update(eventMsg(prepared))
	m = updated.(PanelModel)
	assert.Len(t, m.inflight, 1)
	assert.Contains(t, m.View(), "1 in flight")

	connected := report.NewEvent(report.LevelInfo, "update", "Successful connection!")
	connected.ExchangeID = "x1"
	updated, _ = m.Update(eventMsg(connected))
	m = updated.(PanelModel)
	assert.Len(t, m.inflight, 1)

	failed := report.NewEvent(report.LevelFailure, "update", "No response (timeout)")
	failed.ExchangeID = "x1"
	updated, _ = m.Update(eventMsg(failed))
	m = updated.(PanelModel)
	assert.Empty(t, m.inflight)
	assert.NotContains(t, m.View(), "in flight")
}

func TestPanel_CancelledExchangeLeavesFlight(t *testing.T) {
	m := testPanel(nil)

	prepared := report.NewEvent(report.LevelInfo, "inquiry", "Prepared Message = R-BDSC-024244534301-10")
	prepared.ExchangeID = "x2"
	updated, _ := m.Update(eventMsg(prepared))
	m = updated.(PanelModel)
	assert.Len(t, m.inflight, 1)

	cancelled := report.NewEvent(report.LevelWarning, "inquiry", "Cancelled")
	cancelled.ExchangeID = "x2"
	updated, _ = m.Update(eventMsg(cancelled))
	m = updated.(PanelModel)
	assert.Empty(t, m.inflight)
}
