package executor

import (
	"strings"

	"github.com/caffeineduck/runbox/language/python"
)

// hostFrameMarker identifies stack lines that belong to the JavaScript
// prelude rather than guest code.
const hostFrameMarker = "<cmdline>"

// cleanJSStack drops prelude frames from a QuickJS stack.
func cleanJSStack(stack string) string {
	var kept []string
	for line := range strings.SplitSeq(stack, "\n") {
		if strings.TrimSpace(line) == "" || strings.Contains(line, hostFrameMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// cleanPythonTrace drops prelude frames from a Python traceback. A frame is
// a `  File "..."` line followed by its indented source lines.
func cleanPythonTrace(trace string) string {
	hostFrame := `  File "` + python.HostFile + `"`

	var kept []string
	skipping := false
	for line := range strings.SplitSeq(trace, "\n") {
		switch {
		case strings.HasPrefix(line, hostFrame):
			skipping = true
			continue
		case skipping && strings.HasPrefix(line, "    "):
			continue
		}
		skipping = false
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
