// Package display renders the thermostat screen: current temperature and
// heater state, or a fault notice.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Title is shown once at startup.
const Title = "Water Heater"

// Size is the text scale of a line. Labels are small, values large.
type Size int

const (
	Small Size = 1
	Large Size = 2
)

// Style selects the colour a line is printed in.
type Style int

const (
	Plain Style = iota
	Good
	Alert
)

// Line is one row of the screen.
type Line struct {
	Text  string
	Size  Size
	Style Style
}

// View is the state shown on a frame.
type View struct {
	TempC    float64
	HeaterOn bool
	Fault    bool
}

// Render lays out a frame.
func Render(v View) []Line {
	if v.Fault {
		return []Line{{Text: "Sensor Fault!", Size: Small, Style: Alert}}
	}

	heater := Line{Text: "OFF", Size: Large, Style: Plain}
	if v.HeaterOn {
		heater = Line{Text: "ON", Size: Large, Style: Good}
	}
	return []Line{
		{Text: "Current:", Size: Small},
		{Text: fmt.Sprintf("%.1f°C", v.TempC), Size: Large},
		{Text: "Heater:", Size: Small},
		heater,
	}
}

// Console prints frames to a terminal.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	styles map[Style]func(format string, a ...interface{}) string
}

// NewConsole creates a Console writing to out. With colour disabled the
// output is plain text.
func NewConsole(out io.Writer, useColor bool) *Console {
	good := color.New(color.FgGreen, color.Bold)
	alert := color.New(color.FgRed, color.Bold)
	plain := color.New(color.Reset)
	if !useColor {
		good.DisableColor()
		alert.DisableColor()
		plain.DisableColor()
	} else {
		good.EnableColor()
		alert.EnableColor()
		plain.EnableColor()
	}
	return &Console{
		out: out,
		styles: map[Style]func(string, ...interface{}) string{
			Plain: plain.SprintfFunc(),
			Good:  good.SprintfFunc(),
			Alert: alert.SprintfFunc(),
		},
	}
}

// Splash prints the startup title.
func (c *Console) Splash() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s\n", Title)
	return err
}

// Show prints one frame. Large lines are upper-cased so they stand out.
func (c *Console) Show(v View) error {
	var b strings.Builder
	b.WriteString("----\n")
	for _, l := range Render(v) {
		text := l.Text
		if l.Size == Large {
			text = "  " + strings.ToUpper(text)
		}
		b.WriteString(c.styles[l.Style]("%s", text))
		b.WriteByte('\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.out, b.String()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
