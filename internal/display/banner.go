package display

import (
	"io"

	"github.com/fatih/color"
)

const banner = `     _
 ___| |_ _ __ ___  __ _ _ __ ___  _ __ ___  _   ___  __
/ __| __| '__/ _ \/ _` + "`" + ` | '_ ` + "`" + ` _ \| '_ ` + "`" + ` _ \| | | \ \/ /
\__ \ |_| | |  __/ (_| | | | | | | | | | | | |_| |>  <
|___/\__|_|  \___|\__,_|_| |_| |_|_| |_| |_|\__,_/_/\_\
`

// PrintBanner writes the ASCII art banner, in magenta when colors are enabled.
func PrintBanner(w io.Writer) {
	color.New(color.FgHiMagenta, color.Bold).Fprint(w, banner)
}
