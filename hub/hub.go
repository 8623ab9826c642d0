// Package hub downloads and caches files from HuggingFace dataset
// repositories: corpus shards (parquet), tokenizer models and pre-trained
// embedding files.
//
// Files are cached under a local directory and downloads are coordinated
// across processes with file locks, so concurrent training runs sharing a
// cache don't re-download or corrupt each other's files.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-sentiment/internal/downloader"
	"github.com/pkg/errors"
)

// DefaultDirCreationPerm is used when creating cache directories.
const DefaultDirCreationPerm = os.FileMode(0755)

const (
	defaultBaseURL = "https://huggingface.co"
	defaultBranch  = "main"
)

// Repo points to one HuggingFace dataset repository, e.g. "stanfordnlp/imdb".
type Repo struct {
	// ID is the "<owner>/<name>" repository id.
	ID string

	// Branch (revision) files are resolved against. Defaults to "main".
	Branch string

	// MaxParallelDownload caps simultaneous file downloads.
	MaxParallelDownload int

	baseURL   string
	cacheDir  string
	authToken string

	downloadManager *downloader.Manager

	// fileList is lazily fetched from the hub API and cached for the
	// lifetime of the Repo.
	fileList []string
}

// New creates a reference to the dataset repository with the given id.
// Files are cached under DefaultCacheDir().
func New(id string) *Repo {
	return &Repo{
		ID:                  id,
		Branch:              defaultBranch,
		MaxParallelDownload: downloader.DefaultMaxParallel,
		baseURL:             defaultBaseURL,
		cacheDir:            DefaultCacheDir(),
	}
}

// DefaultCacheDir returns the default local cache directory,
// "${HOME}/.cache/go-sentiment/hub", honoring $XDG_CACHE_HOME.
func DefaultCacheDir() string {
	cacheRoot := os.Getenv("XDG_CACHE_HOME")
	if cacheRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cacheRoot = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheRoot, "go-sentiment", "hub")
}

// InCacheDir changes the cache directory used for this Repo's files.
// It returns the updated Repo.
func (r *Repo) InCacheDir(dir string) *Repo {
	r.cacheDir = dir
	return r
}

// WithAuth sets the access token used for gated repositories.
// It returns the updated Repo.
func (r *Repo) WithAuth(token string) *Repo {
	r.authToken = token
	r.downloadManager = nil
	return r
}

// WithBranch changes the revision files are resolved against.
// It returns the updated Repo.
func (r *Repo) WithBranch(branch string) *Repo {
	r.Branch = branch
	return r
}

// FileURL returns the download URL for a file in this repository.
func (r *Repo) FileURL(fileName string) string {
	return fmt.Sprintf("%s/datasets/%s/resolve/%s/%s",
		r.baseURL, r.ID, url.PathEscape(r.Branch), fileName)
}

// repoCacheDir returns the directory caching this repository's files.
func (r *Repo) repoCacheDir() string {
	return filepath.Join(r.cacheDir, strings.ReplaceAll(r.ID, "/", "--"), r.Branch)
}

// localPath returns where a repository file lives in the cache,
// whether or not it was downloaded yet.
func (r *Repo) localPath(fileName string) string {
	return filepath.Join(r.repoCacheDir(), filepath.FromSlash(fileName))
}

// treeEntry is one entry of the hub's /api/datasets/<id>/tree/<branch> response.
type treeEntry struct {
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// listFiles fetches (once) and returns the repository's file names.
func (r *Repo) listFiles(ctx context.Context) ([]string, error) {
	if r.fileList != nil {
		return r.fileList, nil
	}
	apiURL := fmt.Sprintf("%s/api/datasets/%s/tree/%s?recursive=true",
		r.baseURL, r.ID, url.PathEscape(r.Branch))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %q", apiURL)
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list files of repo %q", r.ID)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("listing files of repo %q returned status %q", r.ID, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file list of repo %q", r.ID)
	}
	var entries []treeEntry
	if err = json.Unmarshal(body, &entries); err != nil {
		return nil, errors.Wrapf(err, "failed to parse file list of repo %q", r.ID)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type == "file" {
			names = append(names, entry.Path)
		}
	}
	r.fileList = names
	return names, nil
}

// IterFileNames iterates over the names of the files in the repository.
// Usable with range: `for fileName, err := range repo.IterFileNames() {...}`.
func (r *Repo) IterFileNames() func(yield func(string, error) bool) {
	return func(yield func(string, error) bool) {
		names, err := r.listFiles(context.Background())
		if err != nil {
			yield("", err)
			return
		}
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

// HasFile returns whether the repository contains the given file.
// Listing errors (network, auth) count as the file not being there.
func (r *Repo) HasFile(fileName string) bool {
	names, err := r.listFiles(context.Background())
	if err != nil {
		return false
	}
	for _, name := range names {
		if name == fileName {
			return true
		}
	}
	return false
}

// ParquetFiles returns the repository's parquet shard names under the given
// split prefix ("train", "test" or "" for all), sorted as listed by the hub.
func (r *Repo) ParquetFiles(split string) ([]string, error) {
	names, err := r.listFiles(context.Background())
	if err != nil {
		return nil, err
	}
	var shards []string
	for _, name := range names {
		if path.Ext(name) != ".parquet" {
			continue
		}
		if split != "" && !strings.Contains(name, split) {
			continue
		}
		shards = append(shards, name)
	}
	return shards, nil
}
