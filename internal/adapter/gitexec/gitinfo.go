package gitexec

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// GitInfo is the resolved git executable's path and reported version.
type GitInfo struct {
	Path    string
	Version string
}

const (
	minGitMajor = 2
	minGitMinor = 49
)

// macOS Homebrew install locations, checked before falling back to PATH.
var homebrewGitPaths = []string{
	"/opt/homebrew/bin/git", // Apple Silicon
	"/usr/local/bin/git",    // Intel Macs
}

// discoverGitInfo runs "{path} version" and parses the resulting GitInfo.
func discoverGitInfo(path string) (GitInfo, error) {
	out, err := exec.Command(path, "version").Output()
	if err != nil {
		return GitInfo{}, fmt.Errorf("get git version from %s: %w", path, err)
	}
	version := strings.TrimPrefix(strings.TrimSpace(string(out)), "git version ")
	return GitInfo{Path: path, Version: version}, nil
}

// ParseVersion splits Version ("2.49.0") into (major, minor).
func (g GitInfo) ParseVersion() (major, minor int, err error) {
	parts := strings.Split(g.Version, ".")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid version format: %s", g.Version)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid major version: %s", parts[0])
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minor version: %s", parts[1])
	}
	return major, minor, nil
}

// ValidateMinimumVersion reports an error if Version is older than the
// minimum Git release branchdeck requires.
func (g GitInfo) ValidateMinimumVersion() error {
	major, minor, err := g.ParseVersion()
	if err != nil {
		return err
	}
	if major < minGitMajor || (major == minGitMajor && minor < minGitMinor) {
		return fmt.Errorf("git version %d.%d is too old, branchdeck requires git %d.%d or newer",
			major, minor, minGitMajor, minGitMinor)
	}
	return nil
}

// locateGit finds a git executable meeting the minimum version requirement:
// on macOS, the Homebrew install locations are preferred over PATH (Apple's
// bundled git is routinely too old); elsewhere, PATH is used directly.
func locateGit() (GitInfo, error) {
	if runtime.GOOS != "darwin" {
		return locatePathGit("")
	}

	for _, path := range homebrewGitPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if info, err := discoverGitInfo(path); err == nil && info.ValidateMinimumVersion() == nil {
			return info, nil
		}
	}

	return locatePathGit("\nnote: Homebrew git not found or doesn't meet requirements; install/upgrade with: brew install git")
}

func locatePathGit(versionErrSuffix string) (GitInfo, error) {
	path, err := exec.LookPath("git")
	if err != nil {
		return GitInfo{}, fmt.Errorf("could not find git executable on PATH: %w", err)
	}
	info, err := discoverGitInfo(path)
	if err != nil {
		return GitInfo{}, err
	}
	if err := info.ValidateMinimumVersion(); err != nil {
		return GitInfo{}, fmt.Errorf("%w%s", err, versionErrSuffix)
	}
	return info, nil
}
