package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"artifact-publisher/internal/config"
	"artifact-publisher/internal/publish"

	"github.com/sirupsen/logrus"
)

// Discordのembedは25フィールドまで
const maxURLFields = 20

type Service struct {
	config *config.Config
	client *http.Client
}

type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type DiscordWebhook struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *Service) NotifyPublishSuccess(ctx context.Context, result *publish.PublishResult) error {
	if !s.config.Notification || s.config.DiscordWebhookURL == "" {
		return nil
	}

	embed := DiscordEmbed{
		Title:       "✅ アーティファクトを公開しました。",
		Description: fmt.Sprintf("%d 個のファイルをアップロードしました", len(result.URLs)),
		Color:       5620992, // 緑色
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []DiscordEmbedField{
			{
				Name:   ":file_folder: 保存先",
				Value:  destLabel(result.DestPath),
				Inline: true,
			},
			{
				Name:   ":timer: 実行時間",
				Value:  fmt.Sprintf("%.1fs", result.Duration.Seconds()),
				Inline: true,
			},
		},
	}
	embed.Fields = append(embed.Fields, urlFields(result.URLs)...)

	return s.sendDiscordWebhook(ctx, embed)
}

func (s *Service) NotifyPublishFailure(ctx context.Context, result *publish.PublishResult, err error, duration time.Duration) error {
	if !s.config.Notification || s.config.DiscordWebhookURL == "" {
		return nil
	}

	embed := DiscordEmbed{
		Title:       "❌ アーティファクトの公開に失敗しました。",
		Description: "アップロードが途中で中断されました。ログを確認してください。",
		Color:       15548997, // 赤色
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []DiscordEmbedField{
			{
				Name:   ":timer: 実行時間",
				Value:  fmt.Sprintf("%.1fs", duration.Seconds()),
				Inline: true,
			},
			{
				Name:   ":warning: エラー",
				Value:  err.Error(),
				Inline: false,
			},
		},
	}

	// 途中までアップロード済みのファイルは残るので通知に含める
	if result != nil && len(result.URLs) > 0 {
		embed.Fields = append(embed.Fields, DiscordEmbedField{
			Name:   ":package: アップロード済み",
			Value:  fmt.Sprintf("%d/%d", len(result.URLs), result.Total),
			Inline: true,
		})
		embed.Fields = append(embed.Fields, urlFields(result.URLs)...)
	}

	return s.sendDiscordWebhook(ctx, embed)
}

func urlFields(urls map[string]string) []DiscordEmbedField {
	names := make([]string, 0, len(urls))
	for name := range urls {
		names = append(names, name)
	}
	sort.Strings(names)

	var fields []DiscordEmbedField
	for i, name := range names {
		if i == maxURLFields {
			fields = append(fields, DiscordEmbedField{
				Name:  ":heavy_plus_sign: その他",
				Value: fmt.Sprintf("%d files", len(names)-maxURLFields),
			})
			break
		}
		fields = append(fields, DiscordEmbedField{
			Name:  ":link: " + name,
			Value: urls[name],
		})
	}
	return fields
}

func destLabel(destPath string) string {
	if destPath == "" {
		return "/"
	}
	return destPath
}

func (s *Service) sendDiscordWebhook(ctx context.Context, embed DiscordEmbed) error {
	webhook := DiscordWebhook{
		Embeds: []DiscordEmbed{embed},
	}

	jsonData, err := json.Marshal(webhook)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.DiscordWebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}

	logrus.Infof("Discord notification sent successfully")
	return nil
}
