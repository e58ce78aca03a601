package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	log "github.com/sirupsen/logrus"
)

// GitOptions configures a git-backed store.
type GitOptions struct {
	Path        string
	RemoteURL   string
	Branch      string
	Username    string
	Password    string
	AuthorName  string
	AuthorEmail string
}

// GitBackend keeps documents as files in a git worktree and records a
// commit per save, giving an audit trail of credential and log mutations.
// When a remote is configured, saves are pushed best-effort.
type GitBackend struct {
	mu       sync.Mutex
	repo     *git.Repository
	worktree *git.Worktree
	options  GitOptions
}

// NewGitBackend creates a git-backed store.
func NewGitBackend(opts GitOptions) *GitBackend {
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "antigravity2api"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "antigravity2api@localhost"
	}
	opts.Path = expandPath(opts.Path)
	return &GitBackend{options: opts}
}

func (g *GitBackend) auth() *githttp.BasicAuth {
	if g.options.Username == "" && g.options.Password == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: g.options.Username, Password: g.options.Password}
}

func (g *GitBackend) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.MkdirAll(g.options.Path, 0o700); err != nil {
		return fmt.Errorf("git backend: create base dir: %w", err)
	}

	var (
		repo *git.Repository
		err  error
	)
	switch {
	case g.isExistingRepo():
		repo, err = git.PlainOpen(g.options.Path)
		if err != nil {
			return fmt.Errorf("git backend: open repo: %w", err)
		}
	case g.options.RemoteURL != "":
		repo, err = git.PlainClone(g.options.Path, false, &git.CloneOptions{
			URL:           g.options.RemoteURL,
			ReferenceName: plumbing.NewBranchReferenceName(g.options.Branch),
			SingleBranch:  true,
			Auth:          g.auth(),
		})
		if err != nil {
			return fmt.Errorf("git backend: clone: %w", err)
		}
	default:
		repo, err = git.PlainInit(g.options.Path, false)
		if err != nil {
			return fmt.Errorf("git backend: init repo: %w", err)
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git backend: worktree: %w", err)
	}

	g.repo = repo
	g.worktree = worktree
	return nil
}

func (g *GitBackend) path(key string) string {
	return filepath.Join(g.options.Path, sanitizeKey(key)+".json")
}

func (g *GitBackend) Load(ctx context.Context, key string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := os.ReadFile(g.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrNotFound{Key: key}
		}
		return nil, err
	}
	return data, nil
}

func (g *GitBackend) Save(ctx context.Context, key string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	path := g.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return g.commit(fmt.Sprintf("update %s", sanitizeKey(key)), sanitizeKey(key)+".json")
}

func (g *GitBackend) Delete(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.Remove(g.path(key)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return g.commit(fmt.Sprintf("delete %s", sanitizeKey(key)), sanitizeKey(key)+".json")
}

// commit stages one file and records a commit. A push failure only logs;
// local history remains the source of truth.
func (g *GitBackend) commit(message, relPath string) error {
	if g.worktree == nil {
		return fmt.Errorf("git backend: not initialized")
	}
	if _, err := g.worktree.Add(relPath); err != nil {
		return fmt.Errorf("git backend: stage %s: %w", relPath, err)
	}
	_, err := g.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.options.AuthorName,
			Email: g.options.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return fmt.Errorf("git backend: commit: %w", err)
	}

	if g.options.RemoteURL != "" {
		if err := g.repo.Push(&git.PushOptions{Auth: g.auth()}); err != nil &&
			!errors.Is(err, git.NoErrAlreadyUpToDate) {
			log.WithError(err).Warn("git backend: push failed, keeping local history")
		}
	}
	return nil
}

func (g *GitBackend) List(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := os.ReadDir(g.options.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

func (g *GitBackend) Health(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.repo == nil {
		return fmt.Errorf("git backend: not initialized")
	}
	_, err := g.repo.Head()
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return err
	}
	return nil
}

func (g *GitBackend) Close() error {
	return nil
}

func (g *GitBackend) isExistingRepo() bool {
	info, err := os.Stat(filepath.Join(g.options.Path, ".git"))
	return err == nil && info.IsDir()
}
