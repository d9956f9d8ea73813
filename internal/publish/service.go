package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"artifact-publisher/internal/config"
	"artifact-publisher/internal/storage"

	"github.com/sirupsen/logrus"
)

type Service struct {
	config  *config.Config
	storage storage.Storage
	now     func() time.Time
}

type PublishResult struct {
	Success  bool
	DestPath string
	// URLs ファイル名から公開URL。失敗時はアップロード済みの分だけ入る
	URLs     map[string]string
	Total    int
	Duration time.Duration
	Error    error
}

func NewService(cfg *config.Config) (*Service, error) {
	storageService, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", cfg.StorageType, err)
	}

	return NewServiceWithStorage(cfg, storageService), nil
}

func NewServiceWithStorage(cfg *config.Config, st storage.Storage) *Service {
	return &Service{
		config:  cfg,
		storage: st,
		now:     time.Now,
	}
}

// Publish uploads files under destPath and reports their public URLs.
func (s *Service) Publish(ctx context.Context, files []storage.FilePair, destPath string) (*PublishResult, error) {
	startTime := s.now()
	result := &PublishResult{
		DestPath: destPath,
		Total:    len(files),
	}

	logrus.Infof("Publishing %d files to %q", len(files), destPath)

	urls, err := s.storage.Upload(ctx, files, destPath)
	result.URLs = urls
	result.Duration = s.now().Sub(startTime)
	if err != nil {
		result.Success = false
		result.Error = fmt.Errorf("failed to publish to %q: %w", destPath, err)
		return result, result.Error
	}

	result.Success = true
	logrus.Infof("Published %d files to %q in %v", len(urls), destPath, result.Duration)
	return result, nil
}

// PublishDir publishes every regular file in ArtifactDir under a
// destination path derived from DestPathFormat.
func (s *Service) PublishDir(ctx context.Context) (*PublishResult, error) {
	files, err := collectArtifacts(s.config.ArtifactDir)
	if err != nil {
		return nil, err
	}

	destPath := s.now().Format(s.config.DestPathFormat)
	if len(files) == 0 {
		logrus.Infof("No artifacts found in %s", s.config.ArtifactDir)
		return &PublishResult{Success: true, DestPath: destPath, URLs: map[string]string{}}, nil
	}

	result, err := s.Publish(ctx, files, destPath)
	if err != nil {
		return result, err
	}

	if s.config.CleanupAfterPublish {
		for _, f := range files {
			if err := os.Remove(f.Source); err != nil {
				logrus.Warnf("Failed to remove published artifact %s: %v", f.Source, err)
			}
		}
	}

	return result, nil
}

// collectArtifacts サブディレクトリは対象外、名前順
func collectArtifacts(dir string) ([]storage.FilePair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var files []storage.FilePair
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, storage.FilePair{
			Source: filepath.Join(dir, entry.Name()),
			Name:   entry.Name(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}
