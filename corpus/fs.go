package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/smhanov/librarian"
	"github.com/spf13/afero"
)

// FS is a read-only corpus over a directory tree.
type FS struct {
	fs      afero.Fs
	root    string
	include []string
	exclude []string
}

// Option configures an FS.
type Option func(*FS)

// WithInclude limits the corpus to files matching any of the doublestar
// patterns. The default is "**".
func WithInclude(patterns ...string) Option {
	return func(c *FS) {
		if len(patterns) > 0 {
			c.include = patterns
		}
	}
}

// WithExclude drops files matching any of the doublestar patterns.
func WithExclude(patterns ...string) Option {
	return func(c *FS) { c.exclude = append(c.exclude, patterns...) }
}

// NewFS creates a corpus rooted at root on fsys.
func NewFS(fsys afero.Fs, root string, opts ...Option) *FS {
	c := &FS{fs: fsys, root: filepath.Clean(root), include: []string{"**"}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDir creates a corpus over a directory of the local filesystem.
func NewDir(dir string, opts ...Option) *FS {
	return NewFS(afero.NewOsFs(), dir, opts...)
}

// Validate checks the patterns and that the root is a readable directory.
func (c *FS) Validate() error {
	for _, p := range append(append([]string{}, c.include...), c.exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid corpus pattern %q", p)
		}
	}
	info, err := c.fs.Stat(c.root)
	if err != nil {
		return unavailable(err)
	}
	if !info.IsDir() {
		return unavailable(fmt.Errorf("%s is not a directory", c.root))
	}
	return nil
}

// List returns the ID of every document, sorted.
func (c *FS) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := afero.Walk(c.fs, c.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)
		if c.matches(id) {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailable(err)
	}
	sort.Strings(ids)
	return ids, nil
}

// FetchAll returns every document with its full contents, in List order.
// The query is ignored: the corpus is always scanned in full.
func (c *FS) FetchAll(ctx context.Context, _ string) ([]librarian.Document, error) {
	ids, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]librarian.Document, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := c.Read(id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, librarian.Document{ID: id, Content: content})
	}
	return docs, nil
}

// Read returns the contents of a single document.
func (c *FS) Read(id string) (string, error) {
	clean := path.Clean("/" + id)[1:]
	if clean == "" || clean != id {
		return "", unavailable(fmt.Errorf("invalid document id %q", id))
	}
	b, err := afero.ReadFile(c.fs, filepath.Join(c.root, filepath.FromSlash(id)))
	if err != nil {
		return "", unavailable(err)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

func (c *FS) matches(id string) bool {
	included := false
	for _, p := range c.include {
		if ok, _ := doublestar.Match(p, id); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range c.exclude {
		if ok, _ := doublestar.Match(p, id); ok {
			return false
		}
	}
	return true
}

func unavailable(err error) error {
	return &librarian.CorpusUnavailableError{Err: err}
}
