package transform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvTransformsPath lists extra transform directories, separated by the OS
// path-list separator.
const EnvTransformsPath = "LEAPBI_TRANSFORMS_PATH"

const (
	appName       = "leapbi"
	transformsDir = "transforms"
)

// Discovery describes where to look for transform directories. Zero fields
// fall back to the running process: os.Getenv, os.Getwd, os.UserHomeDir and
// runtime.GOOS.
type Discovery struct {
	ProjectRoot string
	// Dirs come from --transforms-dir flags or the transforms_dirs setting.
	Dirs []string

	Cwd    string
	Home   string
	GOOS   string
	Getenv func(string) string
}

// DiscoverDirs returns existing transform directories from lowest to highest
// precedence:
//
//  1. the per-user data directory
//  2. LEAPBI_TRANSFORMS_PATH entries
//  3. Discovery.Dirs
//  4. <cwd>/transforms
//  5. <project>/transforms
//
// Duplicates keep their first position.
func DiscoverDirs(d Discovery) []string {
	d = d.withDefaults()

	var candidates []string
	candidates = append(candidates, globalDir(d))
	for _, p := range strings.Split(d.Getenv(EnvTransformsPath), string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			candidates = append(candidates, expandHome(p, d.Home))
		}
	}
	for _, p := range d.Dirs {
		candidates = append(candidates, expandHome(p, d.Home))
	}
	if d.Cwd != "" {
		candidates = append(candidates, filepath.Join(d.Cwd, transformsDir))
	}
	if d.ProjectRoot != "" {
		candidates = append(candidates, filepath.Join(d.ProjectRoot, transformsDir))
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		abs, err := filepath.Abs(c)
		if err != nil {
			abs = filepath.Clean(c)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			dirs = append(dirs, abs)
		}
	}
	return dirs
}

func (d Discovery) withDefaults() Discovery {
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	if d.GOOS == "" {
		d.GOOS = runtime.GOOS
	}
	if d.Home == "" {
		d.Home, _ = os.UserHomeDir()
	}
	if d.Cwd == "" {
		d.Cwd, _ = os.Getwd()
	}
	return d
}

// globalDir is the per-user transforms directory for the platform.
func globalDir(d Discovery) string {
	switch d.GOOS {
	case "windows":
		base := d.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(d.Home, "AppData", "Roaming")
		}
		return filepath.Join(base, appName, transformsDir)
	case "darwin":
		return filepath.Join(d.Home, "Library", "Application Support", appName, transformsDir)
	default:
		base := d.Getenv("XDG_DATA_HOME")
		if base == "" {
			base = filepath.Join(d.Home, ".local", "share")
		}
		return filepath.Join(base, appName, transformsDir)
	}
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		return filepath.Join(home, p[2:])
	}
	return p
}
