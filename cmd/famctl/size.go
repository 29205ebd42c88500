package main

import (
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/famkit/pkg/types"
)

// printer groups digits in every count the CLI prints.
var printer = message.NewPrinter(language.English)

// binaryUnits rewrites the short suffixes to their IEC spelling, so "64K"
// means 65,536 bytes like every other size in this tool.
var binaryUnits = strings.NewReplacer("kb", "kib", "mb", "mib", "gb", "gib", "k", "kib", "m", "mib", "g", "gib")

// parseSize accepts a byte count with an optional binary unit:
// "65536", "64K", "64KiB", "1.5MiB", "2G".
func parseSize(s string) (uint64, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexFunc(in, isUnitRune); i >= 0 && !strings.Contains(in[i:], "i") {
		in = in[:i] + binaryUnits.Replace(in[i:])
	}
	return humanize.ParseBytes(in)
}

func isUnitRune(r rune) bool { return r >= 'a' && r <= 'z' }

// formatSize renders n as "1,048,576 (1.0 MiB)".
func formatSize(n uint64) string {
	if n < types.KiB {
		return printer.Sprintf("%d bytes", n)
	}
	return printer.Sprintf("%d (%s)", n, humanize.IBytes(n))
}
