package utils

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

// LocalStorage is the on-disk fallback for JSON documents when R2 is not configured.
type LocalStorage struct {
	Dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{Dir: dir}, nil
}

// PutJSON writes v to Dir/key, creating parent directories, and returns the file path.
func (l *LocalStorage) PutJSON(_ context.Context, key string, v any) (string, error) {
	destPath := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, body, 0o644); err != nil {
		return "", err
	}
	return destPath, nil
}
