package github

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Scheme is the storage reference scheme for documents that live on GitHub.
const Scheme = "github"

// ErrInvalidRef is returned for malformed github:// references.
var ErrInvalidRef = errors.New("invalid github reference")

// Ref addresses a file or directory in a repository.
type Ref struct {
	Owner string
	Repo  string
	Path  string
}

// ParseRef parses "github://owner/repo/path". The path may be empty.
func ParseRef(s string) (Ref, error) {
	rest, ok := strings.CutPrefix(s, Scheme+"://")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	ref := Ref{Owner: parts[0], Repo: parts[1]}
	if len(parts) == 3 {
		ref.Path = strings.Trim(parts[2], "/")
	}
	return ref, nil
}

// String formats the reference as "github://owner/repo/path".
func (r Ref) String() string {
	if r.Path == "" {
		return fmt.Sprintf("%s://%s/%s", Scheme, r.Owner, r.Repo)
	}
	return fmt.Sprintf("%s://%s/%s/%s", Scheme, r.Owner, r.Repo, r.Path)
}

// Join returns a reference to p below r.
func (r Ref) Join(p string) Ref {
	r.Path = path.Join(r.Path, p)
	return r
}
