package tui

import (
	"fmt"
	"io"
)

// PrintBanner outputs the ASCII art banner shown when a server starts.
func PrintBanner(w io.Writer, version string) {
	p := DetectProfile(w)
	lines := []struct{ text, color string }{
		{"     _ _               _             ", "#818cf8"},
		{"  __| (_)_ __ ___  ___| |_ ___  _ __ ", "#a78bfa"},
		{" / _` | | '__/ _ \\/ __| __/ _ \\| '__|", "#c084fc"},
		{"| (_| | | | |  __/ (__| || (_) | |   ", "#e879f9"},
		{" \\__,_|_|_|  \\___|\\___|\\__\\___/|_|   ", "#f472b6"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintf(w, "%s\n\n", p.String("  version "+version).Faint())
}
