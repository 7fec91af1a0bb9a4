// Package buildinfo carries the version stamped into the binary at link time.
package buildinfo

import (
	"fmt"
	"io"
)

// Set with -ldflags "-X github.com/dmitrijs2005/sirchcoins/internal/buildinfo.Version=..."
var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// PrintBuildData writes the build version, date and commit to w.
func PrintBuildData(w io.Writer) {
	tmpl := `Build version: %s
Build date: %s
Build commit: %s
`
	fmt.Fprintf(w, tmpl, orNA(Version), orNA(Date), orNA(Commit))
}
