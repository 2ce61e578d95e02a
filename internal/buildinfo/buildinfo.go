// Package buildinfo holds version data injected at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/storefront-auth/internal/buildinfo.Version=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

const tmpl = `Build version: %s
Build date: %s
Build commit: %s
`

func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, tmpl, Version, Date, Commit)
}
