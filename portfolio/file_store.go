package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath 默认持仓文件名。
const DefaultPath = "crypto-portfolio-storage.json"

// Store 持仓持久化接口。
type Store interface {
	Load() ([]Item, error)
	Save(items []Item) error
}

// FileStore 把持仓以 JSON 写入单个文件：{"items":[...]}。
// 写入先落临时文件再 rename，进程中断不会留下半个文件。
type FileStore struct {
	Path string
}

type fileFormat struct {
	Items []Item `json:"items"`
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{Path: path}
}

// Load 文件不存在时返回空列表。
func (f *FileStore) Load() ([]Item, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read portfolio: %w", err)
	}
	var doc fileFormat
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse portfolio: %w", err)
	}
	if doc.Items == nil {
		doc.Items = []Item{}
	}
	return doc.Items, nil
}

func (f *FileStore) Save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.MarshalIndent(fileFormat{Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create portfolio dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write portfolio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close portfolio: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace portfolio: %w", err)
	}
	return nil
}
