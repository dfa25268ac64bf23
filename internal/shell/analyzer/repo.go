package analyzer

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidSource is returned when a repository reference cannot be parsed.
var ErrInvalidSource = errors.New("invalid repository reference")

// Source is a resolved repository reference.
type Source struct {
	// CloneURL is set for remote repositories.
	CloneURL string
	// LocalPath is set when the reference names an existing directory.
	LocalPath string
}

// IsLocal reports whether the source is a directory on disk.
func (s Source) IsLocal() bool {
	return s.LocalPath != ""
}

// String returns the reference recorded on the summary.
func (s Source) String() string {
	if s.IsLocal() {
		return s.LocalPath
	}
	return s.CloneURL
}

// ResolveSource normalizes a repository reference. Accepted forms are an
// existing directory, "owner/repo" GitHub shorthand, https URLs and scp-like
// git@host:owner/repo addresses.
func ResolveSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: empty reference", ErrInvalidSource)
	}

	if info, err := os.Stat(raw); err == nil && info.IsDir() {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
		return Source{LocalPath: abs}, nil
	}

	if strings.HasPrefix(raw, "git@") {
		if !strings.Contains(raw, ":") {
			return Source{}, fmt.Errorf("%w: %q", ErrInvalidSource, raw)
		}
		return Source{CloneURL: raw}, nil
	}

	if !strings.Contains(raw, "://") {
		owner, repo, ok := splitOwnerRepo(raw)
		if !ok {
			return Source{}, fmt.Errorf("%w: %q is neither a directory, a URL nor owner/repo", ErrInvalidSource, raw)
		}
		return Source{CloneURL: fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git":
	default:
		return Source{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
	if u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return Source{}, fmt.Errorf("%w: %q has no repository path", ErrInvalidSource, raw)
	}
	return Source{CloneURL: raw}, nil
}

func splitOwnerRepo(s string) (owner, repo string, ok bool) {
	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	for _, p := range parts {
		if strings.ContainsAny(p, " \t:@") || p == "." || p == ".." {
			return "", "", false
		}
	}
	return parts[0], parts[1], true
}
