package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"candle-replay/src/logger"
	"candle-replay/src/models"
)

// FileCandleStore reads candle files for the replay and stores fetched series.
// Relative names resolve under Dir; absolute paths are used as given.
type FileCandleStore struct {
	Dir    string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewFileCandleStore(dir string, log *logger.Logger) *FileCandleStore {
	return &FileCandleStore{Dir: dir, Logger: log}
}

// -----------------------------------------------------------------------------

func (s *FileCandleStore) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty candle file name")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	return filepath.Join(s.Dir, name), nil
}

// -----------------------------------------------------------------------------

func (s *FileCandleStore) ReadSource(name string) ([]byte, string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	return raw, path, nil
}

// -----------------------------------------------------------------------------

// WriteSeries stores series as column-oriented JSON. The file only appears once
// it is complete, so a concurrent load never sees a partial write.
func (s *FileCandleStore) WriteSeries(name string, series *models.MColumnSeries) (string, error) {
	if series == nil {
		return "", fmt.Errorf("nil series")
	}
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(series, "", "  ")
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	s.Logger.Info("Stored %d candles in %s", series.Len(), path)
	return path, nil
}

// -----------------------------------------------------------------------------

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
