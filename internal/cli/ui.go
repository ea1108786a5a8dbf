package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ui prints status lines, colored when the output is a terminal
type ui struct {
	out     io.Writer
	noColor bool
}

func newUI(out io.Writer, noColor bool) *ui {
	return &ui{out: out, noColor: noColor || color.NoColor}
}

func (u *ui) print(c *color.Color, prefix, format string, args ...interface{}) {
	msg := prefix + " " + fmt.Sprintf(format, args...) + "\n"
	if u.noColor {
		fmt.Fprint(u.out, msg)
		return
	}
	c.Fprint(u.out, msg)
}

func (u *ui) success(format string, args ...interface{}) {
	u.print(color.New(color.FgGreen), "✓", format, args...)
}

func (u *ui) warn(format string, args ...interface{}) {
	u.print(color.New(color.FgYellow), "⚠", format, args...)
}

func (u *ui) info(format string, args ...interface{}) {
	u.print(color.New(color.FgCyan), "ℹ", format, args...)
}

// heading prints a title between two rules
func (u *ui) heading(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	fmt.Fprintln(u.out, rule)
	if u.noColor {
		fmt.Fprintln(u.out, title)
	} else {
		color.New(color.FgCyan, color.Bold).Fprintln(u.out, title)
	}
	fmt.Fprintln(u.out, rule)
}

// status colors a status word: green when safe, yellow when elevated, red otherwise
func (u *ui) status(s string) string {
	if u.noColor {
		return s
	}
	if strings.HasSuffix(s, "SURPLUS") || s == "SAFE" || s == "STABLE" {
		return color.GreenString(s)
	}
	if s == "ELEVATED" || s == "MODERATE" {
		return color.YellowString(s)
	}
	return color.RedString(s)
}

// spin shows a spinner on stderr while work runs. It is a no-op without
// color since that usually means the output is not a terminal.
func (u *ui) spin(message string) func() {
	if u.noColor {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	s.Start()
	return s.Stop
}
