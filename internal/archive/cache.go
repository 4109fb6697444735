package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/star/skywatch/internal/heavens"
)

// ErrNotFound is returned by LoadLatest when no archived table exists.
var ErrNotFound = errors.New("no archived table found")

// Cache manages archived table files on disk.
type Cache struct {
	dir      string
	maxFiles int
	mu       sync.Mutex
}

// NewCache creates a Cache that stores files in dir and keeps at most
// maxFiles per source.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Dir returns the archive directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Write saves t to a file named after its source and fetch time in unix
// nanoseconds, then
// prunes that source's old files beyond maxFiles.
func (c *Cache) Write(t *heavens.Table) error {
	if err := validSource(t.Source); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "\t")
	if err != nil {
		return fmt.Errorf("encoding table: %w", err)
	}

	filename := fmt.Sprintf("%s_%d.json", t.Source, t.FetchedAt.UnixNano())
	tmp, err := os.CreateTemp(c.dir, filename+".tmp*")
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing archive file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, filename)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming archive file: %w", err)
	}

	return c.prune(t.Source)
}

// LoadLatest reads the newest archived table for source.
func (c *Cache) LoadLatest(source string) (*heavens.Table, error) {
	if err := validSource(source); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.listFiles(source)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrNotFound)
	}

	// Files are sorted oldest first; take the last one.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, fmt.Errorf("reading archive file: %w", err)
	}

	var t heavens.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding archive file %s: %w", latest.name, err)
	}
	return &t, nil
}

type archiveFile struct {
	name string
	ts   time.Time
}

func (c *Cache) listFiles(source string) ([]archiveFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing archive dir: %w", err)
	}

	prefix := source + "_"
	var files []archiveFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		// Extract unix nanosecond timestamp from filename.
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		nanos, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, archiveFile{name: name, ts: time.Unix(0, nanos)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (c *Cache) prune(source string) error {
	files, err := c.listFiles(source)
	if err != nil {
		return err
	}

	if len(files) <= c.maxFiles {
		return nil
	}

	// Remove oldest files.
	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning archive file %s: %w", f.name, err)
		}
	}

	return nil
}

func validSource(source string) error {
	if source == "" || strings.ContainsAny(source, `/\_.`) {
		return fmt.Errorf("invalid source name %q", source)
	}
	return nil
}
