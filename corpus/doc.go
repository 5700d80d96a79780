// Package corpus provides Corpus implementations for the librarian agent.
//
// FS serves every regular file under a root directory of an afero.Fs. IDs
// are slash-separated paths relative to the root, listed in lexical order.
// Contents are returned as UTF-8 text; invalid byte sequences are replaced
// with U+FFFD.
//
// # Directory Example
//
//	c := corpus.NewDir("./data_files")
//	ids, err := c.List(ctx)
//
// # Filtering
//
//	c := corpus.NewFS(afero.NewOsFs(), "./notes",
//	    corpus.WithInclude("**/*.md", "**/*.txt"),
//	    corpus.WithExclude("drafts/**"),
//	)
//
// # Custom Corpora
//
// Implement the librarian.Corpus interface to serve documents from elsewhere:
//
//	type Corpus interface {
//	    List(ctx context.Context) ([]string, error)
//	    FetchAll(ctx context.Context, query string) ([]librarian.Document, error)
//	}
package corpus
