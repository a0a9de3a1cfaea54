// Package scripts embeds the Risor lint policies shipped with perlnav.
package scripts

import "embed"

// FS holds lint/*.risor.
//
//go:embed lint/*.risor
var FS embed.FS
