package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/flowco/flowsync/pkg/flow"
)

const (
	fileExt = ".jsonl"

	// defaultFileSession names the file of envelopes without a session.
	defaultFileSession = "_default"

	maxLineBytes = 16 << 20
)

// FileJournal stores each session's envelopes as JSON Lines in its own file
// under a base directory.
type FileJournal struct {
	mu      sync.RWMutex
	baseDir string
	closed  bool
}

// NewFileJournal creates a file journal in baseDir, creating it if needed.
func NewFileJournal(baseDir string) (*FileJournal, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("file journal: no directory configured")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &FileJournal{baseDir: baseDir}, nil
}

func (j *FileJournal) sessionPath(session string) string {
	if session == "" {
		session = defaultFileSession
	}
	return filepath.Join(j.baseDir, filepath.Base(session)+fileExt)
}

func (j *FileJournal) Append(ctx context.Context, env flow.Envelope) error {
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	f, err := os.OpenFile(j.sessionPath(env.Session), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write journal file: %w", err)
	}
	return f.Close()
}

func (j *FileJournal) List(ctx context.Context, q Query) ([]flow.Envelope, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	var paths []string
	if q.Session != "" {
		paths = []string{j.sessionPath(q.Session)}
	} else {
		var err error
		if paths, err = filepath.Glob(filepath.Join(j.baseDir, "*"+fileExt)); err != nil {
			return nil, fmt.Errorf("list journal files: %w", err)
		}
	}

	var envs []flow.Envelope
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := readLines(path)
		if err != nil {
			return nil, err
		}
		envs = append(envs, got...)
	}
	return filter(envs, q), nil
}

func (j *FileJournal) Sessions(ctx context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(j.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read journal dir: %w", err)
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != fileExt {
			continue
		}
		session := strings.TrimSuffix(name, fileExt)
		if session == defaultFileSession {
			session = ""
		}
		out = append(out, session)
	}
	slices.Sort(out)
	return out, nil
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

// Path returns the base directory for journal files.
func (j *FileJournal) Path() string {
	return j.baseDir
}

// readLines decodes one envelope per line. A missing file is empty; a
// truncated trailing line from an interrupted write is skipped.
func readLines(path string) ([]flow.Envelope, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	var out []flow.Envelope
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var env flow.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			continue
		}
		out = append(out, env)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read journal file: %w", err)
	}
	return out, nil
}

var _ Journal = (*FileJournal)(nil)
