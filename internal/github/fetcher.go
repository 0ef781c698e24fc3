package github

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
)

// markdownExtensions are the file types the importer picks up.
var markdownExtensions = []string{".md", ".markdown"}

// FetchedDoc represents a file fetched from GitHub
type FetchedDoc struct {
	Ref     Ref
	Content []byte
	SHA     string // File's Git blob SHA
	URL     string // GitHub raw URL
}

// Fetcher reads markdown files from GitHub repositories
type Fetcher struct {
	client *Client
}

// NewFetcher creates a new document fetcher
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// ListDocs recursively lists markdown files below dir. Returned refs are full
// paths within the repository.
func (f *Fetcher) ListDocs(ctx context.Context, dir Ref) ([]Ref, error) {
	var docs []Ref

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, dir.Owner, dir.Repo, dir.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", dir, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		child := dir
		child.Path = path.Join(dir.Path, item.GetName())

		switch item.GetType() {
		case "file":
			if isMarkdown(item.GetName()) {
				docs = append(docs, child)
			}
		case "dir":
			sub, err := f.ListDocs(ctx, child)
			if err != nil {
				return nil, err
			}
			docs = append(docs, sub...)
		}
	}

	return docs, nil
}

// FetchDoc fetches the content of a single file.
func (f *Fetcher) FetchDoc(ctx context.Context, ref Ref) (*FetchedDoc, error) {
	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, ref.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", ref, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", ref)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", ref, err)
	}

	return &FetchedDoc{
		Ref:     ref,
		Content: []byte(content),
		SHA:     fileContent.GetSHA(),
		URL:     fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/HEAD/%s", ref.Owner, ref.Repo, ref.Path),
	}, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit touching dir.
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context, dir Ref) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, dir.Owner, dir.Repo, &github.CommitsListOptions{
		Path: dir.Path,
		ListOptions: github.ListOptions{
			PerPage: 1,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", dir)
	}
	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}
	return commits[0].GetSHA(), nil
}

// Load implements the ingest loader contract for github:// references.
func (f *Fetcher) Load(ctx context.Context, ref string) ([]byte, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	doc, err := f.FetchDoc(ctx, r)
	if err != nil {
		return nil, err
	}
	return doc.Content, nil
}

func isMarkdown(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range markdownExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
