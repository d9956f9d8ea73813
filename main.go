package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"syscall"
	"time"

	"artifact-publisher/internal/config"
	"artifact-publisher/internal/notification"
	"artifact-publisher/internal/publish"
	"artifact-publisher/internal/scheduler"
	"artifact-publisher/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ビルド時に ldflags で注入
var version = "dev"

func main() {
	// パニックリカバリー
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Panic recovered: %v", r)
			logrus.Errorf("Stack trace: %s", debug.Stack())
			os.Exit(1)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "artifact-publisher",
		Short:         "Publish build artifacts to Azure Files or R2 with public download URLs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newURLCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig 設定読み込みとログ設定
func loadConfig() (*config.Config, error) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.Debug("Debug mode enabled")
	}

	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Publish ARTIFACT_DIR on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	publishService, err := publish.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create publish service: %w", err)
	}

	notificationService := notification.NewService(cfg)
	sched := scheduler.NewScheduler(publishService, notificationService, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("Scheduler panic recovered: %v", r)
				logrus.Errorf("Stack trace: %s", debug.Stack())
			}
		}()

		if err := sched.Start(ctx); err != nil {
			logrus.Errorf("Scheduler error: %v", err)
		}
	}()

	logrus.Infof("Artifact publisher started (storage: %s)", cfg.StorageType)

	<-sigChan
	logrus.Info("Shutting down...")
	cancel()

	// グレースフルシャットダウン
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logrus.Errorf("Error during shutdown: %v", err)
	}

	logrus.Info("Service stopped")
	return nil
}

func newUploadCmd() *cobra.Command {
	var destPath string

	cmd := &cobra.Command{
		Use:   "upload <src>[=<name>]...",
		Short: "Upload files once and print their public URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			publishService, err := publish.NewService(cfg)
			if err != nil {
				return err
			}

			result, err := publishService.Publish(cmd.Context(), parseFileArgs(args), destPath)
			if result != nil {
				printURLs(cmd, result.URLs)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&destPath, "dest", "d", "", "destination directory (empty for the share root)")
	return cmd
}

func newURLCmd() *cobra.Command {
	var destPath string

	cmd := &cobra.Command{
		Use:   "url <name>...",
		Short: "Print the public URL a file would be published under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := storage.New(cfg)
			if err != nil {
				return err
			}

			urls := make(map[string]string, len(args))
			for _, name := range args {
				urls[name] = st.PublicURL(destPath, name)
			}
			printURLs(cmd, urls)
			return nil
		},
	}

	cmd.Flags().StringVarP(&destPath, "dest", "d", "", "destination directory (empty for the share root)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("artifact-publisher %s\n", version)
			cmd.Printf("  go: %s\n", runtime.Version())
		},
	}
}

// parseFileArgs "src=name" 形式。名前を省略するとファイル名を使う
func parseFileArgs(args []string) []storage.FilePair {
	files := make([]storage.FilePair, 0, len(args))
	for _, arg := range args {
		src, name, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			name = filepath.Base(src)
		}
		files = append(files, storage.FilePair{Source: src, Name: name})
	}
	return files
}

func printURLs(cmd *cobra.Command, urls map[string]string) {
	names := make([]string, 0, len(urls))
	for name := range urls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, urls[name])
	}
}
