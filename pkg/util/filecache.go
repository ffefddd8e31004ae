// FileCache provides read access to source files through memory-mapped
// regions: the bundler's load hook slices file bytes repeatedly while the
// graph scan and the watcher revisit the same files, and mmap keeps that
// O(1) per access with only touched pages resident.
//
// Limits are safety rails, not tuning knobs: MaxFiles prevents descriptor
// exhaustion and MaxMemoryMB bounds virtual address space. When mmap fails
// the cache falls back to os.ReadFile so no platform quirk blocks a build.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles is the maximum number of files to keep mapped.
	// 0 means unlimited.
	MaxFiles int

	// MaxMemoryMB bounds total mapped virtual memory in MB.
	// 0 means unlimited. This limits address space, not physical RAM.
	MaxMemoryMB int

	// Logger for warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig covers typical library projects with headroom.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:    10000,
		MaxMemoryMB: 2048,
	}
}

// MappedFile is one cached file.
type MappedFile struct {
	// Path is the absolute source path.
	Path string

	// Data is the mapped region, sliceable by byte offset. Nil for empty
	// files and for fallback loads.
	Data mmap.MMap

	// fallback holds the file bytes when mmap failed.
	fallback []byte

	// file keeps the descriptor open for unmapping.
	file *os.File

	// Size is the file size in bytes.
	Size int64
}

// Bytes returns the file content regardless of the backing strategy.
func (m *MappedFile) Bytes() []byte {
	if m.Data != nil {
		return m.Data
	}
	return m.fallback
}

// FileCacheStats are cumulative cache metrics.
type FileCacheStats struct {
	CacheHits    int64
	CacheMisses  int64
	MmapFailures int64
	FilesCached  int
	MappedBytes  int64
}

// FileCache maps files lazily and keeps them until Close or Invalidate.
//
// Thread-safe: reads share an RWMutex; loads use double-checked locking.
type FileCache struct {
	config *FileCacheConfig
	logger *slog.Logger

	mu     sync.RWMutex
	files  map[string]*MappedFile
	stats  FileCacheStats
	mapped int64
}

// NewFileCache creates a cache with the given config (nil for defaults).
func NewFileCache(config *FileCacheConfig) *FileCache {
	if config == nil {
		config = DefaultFileCacheConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCache{
		config: config,
		logger: logger,
		files:  make(map[string]*MappedFile),
	}
}

// Get returns the mapped file, loading it on first access.
func (c *FileCache) Get(filePath string) (*MappedFile, error) {
	c.mu.RLock()
	cached, ok := c.files[filePath]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.stats.CacheHits++
		c.mu.Unlock()
		return cached, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok = c.files[filePath]; ok {
		c.stats.CacheHits++
		return cached, nil
	}
	c.stats.CacheMisses++

	if c.config.MaxFiles > 0 && len(c.files) >= c.config.MaxFiles {
		return nil, fmt.Errorf("file cache limit reached (%d files); raise MaxFiles", c.config.MaxFiles)
	}

	mapped, err := c.load(filePath)
	if err != nil {
		return nil, err
	}
	if c.config.MaxMemoryMB > 0 &&
		(c.mapped+mapped.Size)/(1024*1024) > int64(c.config.MaxMemoryMB) {
		mapped.close()
		return nil, fmt.Errorf("file cache memory limit reached (%d MB); raise MaxMemoryMB", c.config.MaxMemoryMB)
	}
	c.files[filePath] = mapped
	c.mapped += mapped.Size
	c.stats.FilesCached = len(c.files)
	c.stats.MappedBytes = c.mapped
	return mapped, nil
}

// ReadFile returns the content of filePath through the cache.
func (c *FileCache) ReadFile(filePath string) ([]byte, error) {
	mapped, err := c.Get(filePath)
	if err != nil {
		return nil, err
	}
	return mapped.Bytes(), nil
}

// load maps one file, falling back to os.ReadFile on mmap failure.
func (c *FileCache) load(filePath string) (*MappedFile, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}
	if info.Size() == 0 {
		f.Close()
		return &MappedFile{Path: filePath}, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		c.stats.MmapFailures++
		c.logger.Warn("mmap failed, falling back to ReadFile",
			"file", filePath, "error", err)
		content, rerr := os.ReadFile(filePath)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filePath, rerr)
		}
		return &MappedFile{Path: filePath, fallback: content, Size: int64(len(content))}, nil
	}
	return &MappedFile{Path: filePath, Data: data, file: f, Size: info.Size()}, nil
}

// Invalidate drops one file from the cache (the watcher calls this on
// change events).
func (c *FileCache) Invalidate(filePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mapped, ok := c.files[filePath]; ok {
		c.mapped -= mapped.Size
		mapped.close()
		delete(c.files, filePath)
		c.stats.FilesCached = len(c.files)
	}
}

// Stats returns current cache metrics.
func (c *FileCache) Stats() FileCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Size returns the number of cached files.
func (c *FileCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Close unmaps everything. Must be called before shutdown.
func (c *FileCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for path, mapped := range c.files {
		if err := mapped.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to unmap %s: %w", path, err)
		}
	}
	c.files = make(map[string]*MappedFile)
	c.mapped = 0
	return firstErr
}

func (m *MappedFile) close() error {
	var err error
	if m.Data != nil {
		err = m.Data.Unmap()
		m.Data = nil
	}
	if m.file != nil {
		if cerr := m.file.Close(); err == nil {
			err = cerr
		}
		m.file = nil
	}
	return err
}
