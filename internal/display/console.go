package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Console prints screen changes to a terminal, one line per change. The log
// is not echoed since every reading already prints its heart rate.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	heart   *color.Color
	message *color.Color
	count   *color.Color
	control *color.Color
}

func NewConsole(out io.Writer) *Console {
	return &Console{
		out:     out,
		heart:   color.New(color.FgRed, color.Bold),
		message: color.New(color.FgCyan),
		count:   color.New(color.FgYellow),
		control: color.New(color.FgGreen, color.Bold),
	}
}

func (c *Console) SetHeartRate(text string) {
	c.println(c.heart, "♥ %s bpm", text)
}

func (c *Console) SetMessage(text string) {
	c.println(c.message, "» %s", strings.ReplaceAll(text, "\n", " "))
}

func (c *Console) SetCountdown(text string) {
	if text == "" {
		return
	}
	c.println(c.count, "⏱ %s", text)
}

func (c *Console) SetLog(string) {}

func (c *Console) SetControl(label string) {
	c.println(c.control, "[%s]", label)
}

func (c *Console) println(col *color.Color, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, col.Sprintf(format, args...))
}
