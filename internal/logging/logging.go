// Package logging configures the op/go-logging backend shared by every
// perlnav package. Packages obtain their logger with
// logging.MustGetLogger("perlnav.<pkg>") and never configure output
// themselves.
package logging

import (
	"fmt"
	"io"
	"strings"

	gologging "github.com/op/go-logging"
)

const format = `%{time:15:04:05.000} %{level:.4s} %{module} %{message}`

// DefaultLevel is used when Setup receives an empty level.
const DefaultLevel = "WARNING"

// Setup installs a single formatted backend writing to w. level is one of
// DEBUG, INFO, NOTICE, WARNING, ERROR or CRITICAL (case-insensitive).
func Setup(level string, w io.Writer) error {
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := gologging.LogLevel(strings.ToUpper(level))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	backend := gologging.NewLogBackend(w, "", 0)
	formatted := gologging.NewBackendFormatter(backend, gologging.MustStringFormatter(format))
	leveled := gologging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	gologging.SetBackend(leveled)
	return nil
}
