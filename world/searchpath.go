package world

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// PathEnv names the environment variable overriding the search path.
const PathEnv = "LV2_PATH"

const manifestName = "manifest.ttl"

// DefaultSearchPath returns the platform search path used when LV2_PATH is
// unset.
func DefaultSearchPath() []string {
	switch runtime.GOOS {
	case "darwin":
		return SplitPath("~/Library/Audio/Plug-Ins/LV2:~/.lv2:/usr/local/lib/lv2:/usr/lib/lv2:/Library/Audio/Plug-Ins/LV2")
	case "windows":
		return SplitPath("%APPDATA%\\LV2;%COMMONPROGRAMFILES%\\LV2")
	default:
		return SplitPath("~/.lv2:/usr/local/lib/lv2:/usr/lib/lv2")
	}
}

// SearchPath returns the directories from LV2_PATH, or the platform default.
func SearchPath() []string {
	if env := os.Getenv(PathEnv); env != "" {
		return SplitPath(env)
	}
	return DefaultSearchPath()
}

// SplitPath splits a list separated by os.PathListSeparator and expands each
// entry. Empty entries are dropped.
func SplitPath(list string) []string {
	var out []string
	for _, p := range filepath.SplitList(list) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, ExpandPath(p))
		}
	}
	return out
}

// ExpandPath expands a leading "~", $VAR references and, on Windows, %VAR%
// references.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = home + p[1:]
		}
	}
	if runtime.GOOS == "windows" {
		p = expandPercent(p)
	}
	return os.ExpandEnv(p)
}

func expandPercent(p string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(p, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(p[start+1:], '%')
		if end < 0 {
			break
		}
		b.WriteString(p[:start])
		b.WriteString(os.Getenv(p[start+1 : start+1+end]))
		p = p[start+end+2:]
	}
	b.WriteString(p)
	return b.String()
}
