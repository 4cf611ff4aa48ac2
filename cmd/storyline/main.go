package main

import (
	"os"
	"strings"

	"storyline-cli/internal/cli"
)

// valueFlags are the persistent flags that consume the following token.
var valueFlags = map[string]bool{
	"--config":    true,
	"--db":        true,
	"--story":     true,
	"--format":    true,
	"--log-level": true,
}

func isNodeID(s string) bool {
	return strings.HasPrefix(s, "node-") && len(s) > len("node-")
}

// rewriteNodeShortcut turns `storyline [flags] <node-id>` into
// `storyline [flags] layout <node-id>`. Cobra treats the first positional
// token as a subcommand, so the rewrite happens before parsing.
func rewriteNodeShortcut(argv []string) []string {
	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		switch {
		case a == "":
			continue
		case a == "--":
			return argv
		case strings.HasPrefix(a, "-"):
			if valueFlags[a] {
				i++
			}
			continue
		}
		if !isNodeID(a) {
			return argv
		}
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "layout")
		return append(out, argv[i:]...)
	}
	return argv
}

func main() {
	os.Args = rewriteNodeShortcut(os.Args)

	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
