// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStorage persists song records, scene images and audit artifacts as
// plain files under a base directory, with atomic writes and a small TTL
// read cache.
type FileStorage struct {
	BaseDir string

	// Per-file locks, path -> *sync.RWMutex
	fileLocks sync.Map

	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int
}

// CacheEntry is one cached file body.
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage creates a file storage rooted at baseDir.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	fs := &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 100,
	}

	fs.startCacheCleanup()

	return fs, nil
}

func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// FilePath resolves the absolute path of a stored file without touching it.
func (fs *FileStorage) FilePath(dirPath, filename string) string {
	return filepath.Join(fs.BaseDir, dirPath, filename)
}

// FileExists reports whether a stored file is present.
func (fs *FileStorage) FileExists(dirPath, filename string) bool {
	info, err := os.Stat(fs.FilePath(dirPath, filename))
	return err == nil && !info.IsDir()
}

// SaveFile writes content atomically (temp file + rename).
func (fs *FileStorage) SaveFile(dirPath, filename string, content []byte) error {
	fullDirPath := filepath.Join(fs.BaseDir, dirPath)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fmt.Printf("warning: failed to clean up temp file %s: %v\n", tempPath, removeErr)
		}
		return fmt.Errorf("failed to save file: %w", err)
	}

	fs.invalidateCache(fullPath)

	return nil
}

// SaveJSONFile marshals data with indentation and writes it atomically.
func (fs *FileStorage) SaveJSONFile(dirPath, filename string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize JSON: %w", err)
	}

	return fs.SaveFile(dirPath, filename, content)
}

// BackupFile renames an existing file to a timestamped .bak sibling before it
// gets overwritten. Missing files are not an error. Returns the backup path,
// or "" when nothing was backed up.
func (fs *FileStorage) BackupFile(dirPath, filename string) (string, error) {
	fullPath := fs.FilePath(dirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return "", nil
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	backupName := fmt.Sprintf("%s_%s%s.bak", stem, time.Now().Format("20060102_150405"), ext)
	backupPath := filepath.Join(fs.BaseDir, dirPath, backupName)

	if err := copyFile(fullPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up file: %w", err)
	}

	return backupPath, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// LoadFile reads a stored file through the cache.
func (fs *FileStorage) LoadFile(dirPath, filename string) ([]byte, error) {
	fullPath := fs.FilePath(dirPath, filename)

	fs.cacheMutex.RLock()
	if entry, exists := fs.cache[fullPath]; exists {
		if time.Since(entry.Timestamp) < fs.cacheExpiry {
			fs.cacheMutex.RUnlock()
			return entry.Data, nil
		}
	}
	fs.cacheMutex.RUnlock()

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	fs.storeInCache(fullPath, data)

	return data, nil
}

// LoadJSONFile reads and unmarshals a stored JSON file.
func (fs *FileStorage) LoadJSONFile(dirPath, filename string, target interface{}) error {
	data, err := fs.LoadFile(dirPath, filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// ListDirs lists subdirectories of a stored directory, sorted by name.
func (fs *FileStorage) ListDirs(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.BaseDir, dirPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

func (fs *FileStorage) storeInCache(fullPath string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	// Evict the oldest entry when full
	if len(fs.cache) >= fs.maxCacheSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for key, entry := range fs.cache {
			if first || entry.Timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.Timestamp
				first = false
			}
		}
		if oldestKey != "" {
			delete(fs.cache, oldestKey)
		}
	}

	fs.cache[fullPath] = &CacheEntry{
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (fs *FileStorage) invalidateCache(fullPath string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()
	delete(fs.cache, fullPath)
}

func (fs *FileStorage) startCacheCleanup() {
	go func() {
		ticker := time.NewTicker(fs.cacheExpiry)
		defer ticker.Stop()

		for range ticker.C {
			fs.cacheMutex.Lock()
			now := time.Now()
			for key, entry := range fs.cache {
				if now.Sub(entry.Timestamp) > fs.cacheExpiry {
					delete(fs.cache, key)
				}
			}
			fs.cacheMutex.Unlock()
		}
	}()
}
