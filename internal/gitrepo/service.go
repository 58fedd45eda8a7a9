// Package gitrepo records every saved document as a commit in a local git
// repository so earlier versions can be listed and restored.
package gitrepo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"taskdoc/internal/document"
)

const contentFile = "task_data.json"

// ErrNoHistory is returned when a repository has no commits yet.
var ErrNoHistory = errors.New("no history")

// Commit describes one saved version.
type Commit struct {
	Hash      string         `json:"hash"`
	FullHash  string         `json:"fullHash"`
	Message   string         `json:"message"`
	Author    string         `json:"author"`
	CreatedAt time.Time      `json:"createdAt"`
	Stats     document.Stats `json:"stats"`
}

// Service keeps one repository per history name below baseDir. Access to
// each repository is serialized.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// CommitDocument writes doc as the next version of name. Saving content
// identical to the head returns the head commit and changed=false.
func (s *Service) CommitDocument(name string, doc *document.Document, author, message string) (Commit, bool, error) {
	lock := s.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(name)
	if err != nil {
		return Commit{}, false, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, false, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := document.Marshal(doc)
	if err != nil {
		return Commit{}, false, err
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, contentFile), append(payload, '\n'), 0o644); err != nil {
		return Commit{}, false, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Commit{}, false, fmt.Errorf("git add content: %w", err)
	}

	if author == "" {
		author = "taskdoc"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.taskdoc", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		head, err := headCommit(repo)
		if err != nil {
			return Commit{}, false, err
		}
		info, err := toCommit(head)
		return info, false, err
	}
	if err != nil {
		return Commit{}, false, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, false, fmt.Errorf("read commit object: %w", err)
	}
	info, err := toCommit(commitObj)
	return info, true, err
}

// Head returns the latest saved version of name.
func (s *Service) Head(name string) (*document.Document, Commit, error) {
	lock := s.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(name)
	if err != nil {
		return nil, Commit{}, err
	}
	commitObj, err := headCommit(repo)
	if err != nil {
		return nil, Commit{}, err
	}
	doc, err := readDocument(commitObj)
	if err != nil {
		return nil, Commit{}, err
	}
	info, err := toCommit(commitObj)
	return doc, info, err
}

// DocumentAt loads the version saved in the commit named by hash, which may
// be abbreviated.
func (s *Service) DocumentAt(name, hash string) (*document.Document, Commit, error) {
	lock := s.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(name)
	if err != nil {
		return nil, Commit{}, err
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return nil, Commit{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return nil, Commit{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	doc, err := readDocument(commitObj)
	if err != nil {
		return nil, Commit{}, err
	}
	info, err := toCommit(commitObj)
	return doc, info, err
}

// History lists commits newest first. limit <= 0 means no limit.
func (s *Service) History(name string, limit int) ([]Commit, error) {
	lock := s.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(name)
	if errors.Is(err, ErrNoHistory) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		info, err := toCommit(commitObj)
		if err != nil {
			return err
		}
		items = append(items, info)
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) repoPath(name string) string {
	return filepath.Join(s.baseDir, name)
}

func (s *Service) repoLock(name string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[name]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[name] = lock
	return lock
}

func (s *Service) open(name string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(name))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(name string) (*git.Repository, error) {
	repo, err := s.open(name)
	if !errors.Is(err, ErrNoHistory) {
		return repo, err
	}
	path := s.repoPath(name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func readDocument(commitObj *object.Commit) (*document.Document, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()
	return document.Decode(reader)
}

func toCommit(commitObj *object.Commit) (Commit, error) {
	doc, err := readDocument(commitObj)
	if err != nil {
		return Commit{}, err
	}
	full := commitObj.Hash.String()
	return Commit{
		Hash:      full[:7],
		FullHash:  full,
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
		Stats:     doc.Stats(),
	}, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
