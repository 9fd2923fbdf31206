package common

import (
	"os"
	"regexp"
)

// knownPathDefaults covers the %VAR%-style placeholders deployments commonly
// leave unset; anything not listed here passes through untouched.
var knownPathDefaults = map[string]string{
	"DATA_DIR": "/data",
}

var windowsStyleVarPattern = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandLogDirPath expands $VAR / ${VAR} (via the environment) and %VAR%
// (via the environment, falling back to knownPathDefaults) placeholders in a
// configured log/data directory path. A %VAR% with neither an environment
// value nor a known default is left as-is.
func expandLogDirPath(path string) string {
	path = os.Expand(path, os.Getenv)

	return windowsStyleVarPattern.ReplaceAllStringFunc(path, func(match string) string {
		name := windowsStyleVarPattern.FindStringSubmatch(match)[1]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if v, ok := knownPathDefaults[name]; ok {
			return v
		}
		return match
	})
}
