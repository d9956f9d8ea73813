package storage

import (
	"context"
	"fmt"

	"artifact-publisher/internal/config"
)

// FilePair ローカルファイルとリモートでのファイル名の組
type FilePair struct {
	Source string
	Name   string
}

// Storage アーティファクト公開用ストレージのインターフェース
type Storage interface {
	// Upload ファイルを destPath 配下にアップロードし、ファイル名から公開URLへのマップを返す
	// 失敗時はそれまでにアップロードできたファイルのマップとエラーを返す（ロールバックしない）
	Upload(ctx context.Context, files []FilePair, destPath string) (map[string]string, error)

	// PublicURL アップロード結果に依存しない公開URLを返す
	PublicURL(destPath, name string) string
}

// New 設定に応じたストレージを生成
func New(cfg *config.Config) (Storage, error) {
	switch cfg.StorageType {
	case config.StorageAzureFiles:
		s, err := NewAzureFilesStorage(AzureFilesConfig{
			BaseURL:        cfg.AzureBaseURL,
			Share:          cfg.AzureShare,
			SASPublicToken: PublicToken(cfg.AzureSASPublicToken),
		}, Credentials{
			AccountName: cfg.AzureAccountName,
			AccountKey:  cfg.AzureAccountKey,
			SASToken:    cfg.AzureSASToken,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageR2:
		s, err := NewR2Storage(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.StorageType)
	}
}
