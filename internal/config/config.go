package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	StorageAzureFiles = "azure-files"
	StorageR2         = "r2"
)

type Config struct {
	// ストレージ種別
	StorageType string

	// Azure Files設定
	AzureBaseURL        string
	AzureShare          string
	AzureSASPublicToken string
	AzureAccountName    string
	AzureAccountKey     string
	AzureSASToken       string

	// Cloudflare R2設定
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Prefix          string
	R2PublicBase      string

	// 公開設定
	ArtifactDir         string
	DestPathFormat      string
	CleanupAfterPublish bool

	// アップロード設定
	PublishTimeout int // 分単位

	// デバッグ設定
	Debug bool

	// 通知設定
	Notification      bool
	DiscordWebhookURL string

	// スケジューラー設定
	CronSchedule string
	Timezone     string
}

func Load() (*Config, error) {
	// .envファイルがなければ環境変数のみを使う
	_ = godotenv.Load("config/.env")

	cfg := &Config{
		StorageType:         getEnv("STORAGE_TYPE", StorageAzureFiles),
		AzureBaseURL:        getEnv("AZURE_FILES_BASE_URL", ""),
		AzureShare:          getEnv("AZURE_FILES_SHARE", ""),
		AzureSASPublicToken: getEnv("AZURE_FILES_SAS_PUBLIC_TOKEN", ""),
		AzureAccountName:    getEnv("AZURE_FILES_ACCOUNT_NAME", ""),
		AzureAccountKey:     getEnv("AZURE_FILES_ACCOUNT_KEY", ""),
		AzureSASToken:       getEnv("AZURE_FILES_SAS_TOKEN", ""),
		R2Endpoint:          getEnv("BACKUP_ENDPOINT", ""),
		R2AccessKeyID:       getEnv("BACKUP_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:   getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		R2BucketName:        getEnv("R2_BUCKET_NAME", ""),
		R2Prefix:            getEnv("R2_PREFIX", ""),
		R2PublicBase:        getEnv("R2_PUBLIC_BASE", ""),
		ArtifactDir:         getEnv("ARTIFACT_DIR", "/app/artifacts"),
		DestPathFormat:      getEnv("DEST_PATH_FORMAT", "2006-01-02_15-04"),
		CleanupAfterPublish: getEnvAsBool("CLEANUP_AFTER_PUBLISH", false),
		PublishTimeout:      getEnvAsInt("PUBLISH_TIMEOUT", 30),
		Debug:               getEnvAsBool("DEBUG", false),
		Notification:        getEnvAsBool("NOTIFICATION", false),
		DiscordWebhookURL:   getEnv("DISCORD_WEBHOOK_URL", ""),
		CronSchedule:        getEnv("CRON_SCHEDULE", "0 5,17 * * *"),
		Timezone:            getEnv("TZ", "Asia/Tokyo"),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
