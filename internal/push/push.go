// Package push records committed artifacts in a git repository and pushes
// them to a remote.
package push

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
	"github.com/yairfalse/cfgwatch/internal/logger"
)

// Result is the outcome of one push. Err is informational only; a failed
// push never invalidates the artifacts it was given.
type Result struct {
	Committed bool
	Pushed    bool
	Hash      string
	Err       error
}

// Pusher records paths under version control.
type Pusher interface {
	Push(ctx context.Context, message string, paths []string) Result
}

// Config configures a GitPusher
type Config struct {
	RepoPath    string
	RemoteURL   string
	RemoteName  string
	Branch      string
	Username    string
	Password    string
	AuthorName  string
	AuthorEmail string
}

// GitPusher commits to a local repository, initializing it on first use,
// and pushes the branch to RemoteURL when one is configured.
type GitPusher struct {
	config Config
	logger logger.Logger
	now    func() time.Time
}

// NewGitPusher creates a GitPusher with defaults applied
func NewGitPusher(config Config, log logger.Logger) *GitPusher {
	if config.RemoteName == "" {
		config.RemoteName = "origin"
	}
	if config.Branch == "" {
		config.Branch = "main"
	}
	if config.AuthorName == "" {
		config.AuthorName = "cfgwatch"
	}
	if config.AuthorEmail == "" {
		config.AuthorEmail = "cfgwatch@localhost"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &GitPusher{config: config, logger: log, now: time.Now}
}

// Push stages paths, commits them and pushes.
func (p *GitPusher) Push(ctx context.Context, message string, paths []string) Result {
	var res Result

	repo, err := p.openRepository()
	if err != nil {
		res.Err = cwerrors.PushError("open", err)
		return res
	}

	wt, err := repo.Worktree()
	if err != nil {
		res.Err = cwerrors.PushError("worktree", err)
		return res
	}

	for _, path := range paths {
		rel, err := p.relative(path)
		if err != nil {
			res.Err = cwerrors.PushError("add", err)
			return res
		}
		if _, err := wt.Add(rel); err != nil {
			res.Err = cwerrors.PushError("add", fmt.Errorf("%s: %w", rel, err))
			return res
		}
	}

	status, err := wt.Status()
	if err != nil {
		res.Err = cwerrors.PushError("status", err)
		return res
	}
	if status.IsClean() {
		p.logger.Debug("Nothing to commit")
		return res
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.config.AuthorName,
			Email: p.config.AuthorEmail,
			When:  p.now(),
		},
	})
	if err != nil {
		res.Err = cwerrors.PushError("commit", err)
		return res
	}
	res.Committed = true
	res.Hash = hash.String()

	if p.config.RemoteURL == "" {
		return res
	}
	if err := p.ensureRemote(repo); err != nil {
		res.Err = cwerrors.PushError("remote", err)
		return res
	}

	ref := plumbing.NewBranchReferenceName(p.config.Branch)
	opts := &git.PushOptions{
		RemoteName: p.config.RemoteName,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref.String() + ":" + ref.String())},
	}
	if p.config.Username != "" || p.config.Password != "" {
		opts.Auth = &http.BasicAuth{Username: p.config.Username, Password: p.config.Password}
	}

	err = repo.PushContext(ctx, opts)
	switch {
	case err == nil, err == git.NoErrAlreadyUpToDate:
		res.Pushed = true
	default:
		res.Err = cwerrors.PushError("push", err)
	}
	return res
}

func (p *GitPusher) openRepository() (*git.Repository, error) {
	repo, err := git.PlainOpen(p.config.RepoPath)
	if err == nil {
		return repo, nil
	}
	if err != git.ErrRepositoryNotExists {
		return nil, err
	}

	p.logger.WithField("path", p.config.RepoPath).Info("Initializing backup repository")
	return git.PlainInitWithOptions(p.config.RepoPath, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(p.config.Branch),
		},
	})
}

func (p *GitPusher) ensureRemote(repo *git.Repository) error {
	remote, err := repo.Remote(p.config.RemoteName)
	if err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 && urls[0] != p.config.RemoteURL {
			p.logger.WithFields(map[string]interface{}{
				"remote":     p.config.RemoteName,
				"configured": p.config.RemoteURL,
				"existing":   urls[0],
			}).Warn("Remote URL differs from configuration, using existing remote")
		}
		return nil
	}
	if err != git.ErrRemoteNotFound {
		return err
	}
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: p.config.RemoteName,
		URLs: []string{p.config.RemoteURL},
	})
	return err
}

// relative converts path to a slash-separated path inside the repository.
func (p *GitPusher) relative(path string) (string, error) {
	root, err := filepath.Abs(p.config.RepoPath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside repository %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}
