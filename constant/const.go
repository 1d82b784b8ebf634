package constant

import (
	_ "embed"
	"fmt"
	"strings"
	"time"
)

const AppName = "ytmp3d"

var (
	//go:embed version
	version string
	// Set at build time with -ldflags "-X github.com/xeptore/ytmp3d/constant.compileTime=...".
	compileTime = "2026-01-01T00:00:00Z"

	Version     = strings.TrimSpace(version)
	CompileTime time.Time
)

func init() {
	t, err := time.Parse(time.RFC3339, compileTime)
	if nil != err {
		panic(fmt.Errorf("could not parse compileTime constant %q. Make sure it is set to an RFC3339 timestamp at build time", compileTime))
	}
	CompileTime = t
}
