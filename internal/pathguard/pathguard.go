// Package pathguard validates untrusted relative paths from a scaffold
// descriptor and resolves them to absolute destinations inside a workspace
// root.
//
// Containment is decided on the normalized path, never on the raw text:
// both separators are folded to the host convention, the path is cleaned
// and joined to the root, and filepath.Rel must not climb out of it.
// Existing symlinks along the way are resolved so a link inside the
// workspace cannot redirect a write outside it.
//
// Unicode normalization only feeds the checks. The file is written under
// the exact name the service sent; on most Linux filesystems NFC and NFD
// spellings are distinct files.
package pathguard

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/simonhull/hatch/internal/scaffold"
	"golang.org/x/text/unicode/norm"
)

// DefaultProtected lists the gitignore-style patterns that are never
// writable.
var DefaultProtected = []string{".git"}

// Resolver resolves entries against one workspace root.
type Resolver struct {
	root      string // cleaned absolute root
	realRoot  string // root with symlinks resolved
	protected *ignore.GitIgnore
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithProtected replaces the protected patterns. An empty list disables
// protection.
func WithProtected(patterns ...string) Option {
	return func(r *Resolver) {
		if len(patterns) == 0 {
			r.protected = nil
			return
		}
		r.protected = ignore.CompileIgnoreLines(patterns...)
	}
}

// New creates a resolver for root. The root must exist and be a directory.
func New(root string, opts ...Option) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, &scaffold.InputError{Reason: "workspace root is empty"}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &scaffold.InputError{Reason: fmt.Sprintf("workspace root %q: %v", root, err)}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &scaffold.InputError{Reason: fmt.Sprintf("workspace root %q: %v", root, err)}
	}
	if !info.IsDir() {
		return nil, &scaffold.InputError{Reason: fmt.Sprintf("workspace root %q is not a directory", root)}
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &scaffold.InputError{Reason: fmt.Sprintf("workspace root %q: %v", root, err)}
	}

	r := &Resolver{
		root:      abs,
		realRoot:  real,
		protected: ignore.CompileIgnoreLines(DefaultProtected...),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the absolute workspace root.
func (r *Resolver) Root() string {
	return r.root
}

// RealRoot returns the root with symlinks resolved. Two roots naming the
// same directory share a RealRoot.
func (r *Resolver) RealRoot() string {
	return r.realRoot
}

// Resolve is a convenience wrapper for one-off resolution with default
// options.
func Resolve(root string, entry scaffold.FileEntry) (scaffold.ResolvedWrite, error) {
	r, err := New(root)
	if err != nil {
		return scaffold.ResolvedWrite{}, err
	}
	return r.Resolve(entry)
}

// Key returns the result key for a descriptor path: the path as sent with
// backslashes folded to forward slashes. Written and rejected entries are
// recorded under the same key.
func Key(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Resolve validates entry.Path and returns its destination. Any rejection
// is a *scaffold.PathSecurityError naming the original path.
func (r *Resolver) Resolve(entry scaffold.FileEntry) (scaffold.ResolvedWrite, error) {
	reject := func(reason string) (scaffold.ResolvedWrite, error) {
		return scaffold.ResolvedWrite{}, &scaffold.PathSecurityError{Path: entry.Path, Reason: reason}
	}

	raw := entry.Path
	if strings.TrimSpace(raw) == "" {
		return reject("path is empty")
	}
	if strings.ContainsRune(raw, 0) {
		return reject("path contains a NUL byte")
	}

	rel, err := r.contain(raw)
	if err != nil {
		return reject(err.Error())
	}

	composed := norm.NFC.String(raw)
	if composed != raw {
		nfcRel, err := r.contain(composed)
		if err != nil {
			return reject(err.Error())
		}
		if r.isProtected(nfcRel) {
			return reject("path is protected")
		}
	}

	// A percent-encoded form that escapes when decoded is treated as hostile
	// even though the literal name would stay inside the root.
	if strings.Contains(raw, "%") {
		if decoded, err := url.PathUnescape(raw); err == nil && decoded != raw {
			if _, err := r.contain(decoded); err != nil {
				return reject("encoded path " + err.Error())
			}
		}
	}

	if r.isProtected(rel) {
		return reject("path is protected")
	}

	abs := filepath.Join(r.root, rel)
	if err := r.checkLinks(abs); err != nil {
		return reject(err.Error())
	}

	return scaffold.ResolvedWrite{
		RelPath: Key(raw),
		AbsPath: abs,
		Content: entry.Content,
	}, nil
}

var (
	errAbsolute = errors.New("absolute paths are not allowed")
	errEscapes  = errors.New("resolves outside the workspace root")
	errIsRoot   = errors.New("resolves to the workspace root itself")
)

func (r *Resolver) isProtected(rel string) bool {
	return r.protected != nil && r.protected.MatchesPath(filepath.ToSlash(rel))
}

// contain cleans p and returns it relative to the root, or an error if it
// is absolute or does not land strictly inside the root.
func (r *Resolver) contain(p string) (string, error) {
	p = Key(p)

	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) || filepath.VolumeName(filepath.FromSlash(p)) != "" {
		return "", errAbsolute
	}
	// Drive-relative forms such as "C:foo" on any host.
	if len(p) >= 2 && p[1] == ':' && isLetter(p[0]) {
		return "", errAbsolute
	}

	joined := filepath.Join(r.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(r.root, joined)
	if err != nil {
		return "", errEscapes
	}
	if rel == "." {
		return "", errIsRoot
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errEscapes
	}
	return rel, nil
}

// checkLinks resolves the deepest existing ancestor of abs (or abs itself)
// and verifies it is still inside the real root.
func (r *Resolver) checkLinks(abs string) error {
	existing := abs
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing || len(parent) < len(r.root) {
			return nil
		}
		existing = parent
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		// Dangling link: refuse rather than guess where it points.
		return fmt.Errorf("cannot resolve %s: %v", filepath.Base(existing), err)
	}
	rel, err := filepath.Rel(r.realRoot, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New("symlink resolves outside the workspace root")
	}
	return nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
