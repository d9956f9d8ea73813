package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// PublicToken 公開URLの末尾にそのまま付与する読み取り専用SASクエリ（例: "?sv=..."）
type PublicToken string

// Credentials 書き込み用の認証情報。公開URLには絶対に含めない。
// AccountKey が設定されていれば共有キー、なければ SASToken を使う。
type Credentials struct {
	AccountName string
	AccountKey  string
	SASToken    string
}

// String ログ出力時に秘密情報を出さない
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccountName: %q, secret: <redacted>}", c.AccountName)
}

func (c Credentials) GoString() string {
	return c.String()
}

type AzureFilesConfig struct {
	BaseURL        string
	Share          string
	SASPublicToken PublicToken
}

// Share 準備済みの共有
type Share struct {
	Name string
}

// Directory 準備済みのディレクトリ。Path が空なら共有のルート。
type Directory struct {
	Share string
	Path  string
}

// fileShareClient Azure Files データプレーンのうち使用する操作のみ
type fileShareClient interface {
	CreateShare(ctx context.Context, share string) error
	CreateDirectory(ctx context.Context, share, dirPath string) error
	UploadFile(ctx context.Context, share, dirPath, name string, src *os.File) error
}

type fileShareDialer func(baseURL string, cred Credentials) (fileShareClient, error)

// AzureFilesStorage Azure Files の共有にファイルをアップロードし、
// ベースURLと読み取り専用SASトークンから公開URLを組み立てる。
//
// Upload は順番に処理し、ロールバックしない。転送に失敗した時点で
// 同じ呼び出しでアップロード済みのファイルはそのまま残り、残りは処理せず、
// それまでのURLマップと *UploadError を返す。
type AzureFilesStorage struct {
	config      AzureFilesConfig
	credentials Credentials
	dial        fileShareDialer

	connMu sync.Mutex
	client fileShareClient

	// 作成済み（または既存と確認済み）の共有とディレクトリ
	provisionMu sync.Mutex
	shareReady  bool
	dirsReady   map[string]bool
}

func NewAzureFilesStorage(cfg AzureFilesConfig, cred Credentials) (*AzureFilesStorage, error) {
	if cfg.BaseURL == "" || cfg.Share == "" || cfg.SASPublicToken == "" {
		return nil, fmt.Errorf("Azure Files configuration is incomplete")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Azure Files base URL: %s", cfg.BaseURL)
	}

	if !strings.HasPrefix(string(cfg.SASPublicToken), "?") {
		return nil, fmt.Errorf("SAS public token must start with '?'")
	}

	return newAzureFilesStorage(cfg, cred, dialAzureFiles), nil
}

func newAzureFilesStorage(cfg AzureFilesConfig, cred Credentials, dial fileShareDialer) *AzureFilesStorage {
	return &AzureFilesStorage{
		config:      cfg,
		credentials: cred,
		dial:        dial,
		dirsReady:   make(map[string]bool),
	}
}

// Connect サービスクライアントを一度だけ生成する。2回目以降は何もしない
func (s *AzureFilesStorage) Connect() error {
	_, err := s.connection()
	return err
}

func (s *AzureFilesStorage) connection() (fileShareClient, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client, err := s.dial(s.config.BaseURL, s.credentials)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, s.config.BaseURL, err)
	}

	s.client = client
	logrus.Infof("Connected to Azure Files: %s", s.config.BaseURL)
	return client, nil
}

// EnsureShare 設定された共有を作成する。既存の共有は成功扱い。
// 最初のリモート呼び出しなので、到達不能や認証拒否はここで ErrConnection になる
func (s *AzureFilesStorage) EnsureShare(ctx context.Context) (Share, error) {
	client, err := s.connection()
	if err != nil {
		return Share{}, err
	}

	share := Share{Name: s.config.Share}

	s.provisionMu.Lock()
	defer s.provisionMu.Unlock()

	if s.shareReady {
		logrus.Debugf("Share %s already provisioned", share.Name)
		return share, nil
	}

	if err := client.CreateShare(ctx, share.Name); err != nil {
		switch {
		case errors.Is(err, errAlreadyExists):
			logrus.Infof("Using existing share: %s", share.Name)
		case errors.Is(err, errUnreachable):
			return Share{}, fmt.Errorf("%w: %s: %w", ErrConnection, s.config.BaseURL, err)
		default:
			return Share{}, fmt.Errorf("%w: %s: %w", ErrShareAccess, share.Name, err)
		}
	} else {
		logrus.Infof("Created share: %s", share.Name)
	}

	s.shareReady = true
	return share, nil
}

// EnsureDirectory dirPath の各階層を順に作成する（既存は成功扱い）。
// 空文字、"."、"/" は共有のルートを表し、作成しない
func (s *AzureFilesStorage) EnsureDirectory(ctx context.Context, share Share, dirPath string) (Directory, error) {
	segments, err := dirSegments(dirPath)
	if err != nil {
		return Directory{}, fmt.Errorf("%w: %s/%s: %w", ErrDirectoryCreate, share.Name, dirPath, err)
	}

	dir := Directory{Share: share.Name, Path: strings.Join(segments, "/")}
	if dir.Path == "" {
		return dir, nil
	}

	client, err := s.connection()
	if err != nil {
		return Directory{}, err
	}

	s.provisionMu.Lock()
	defer s.provisionMu.Unlock()

	for i := range segments {
		p := strings.Join(segments[:i+1], "/")
		key := share.Name + "/" + p
		if s.dirsReady[key] {
			continue
		}

		if err := client.CreateDirectory(ctx, share.Name, p); err != nil {
			if !errors.Is(err, errAlreadyExists) {
				return Directory{}, fmt.Errorf("%w: %s: %w", ErrDirectoryCreate, key, err)
			}
			logrus.Debugf("Directory %s already exists", key)
		} else {
			logrus.Infof("Created directory: %s", key)
		}
		s.dirsReady[key] = true
	}

	return dir, nil
}

// Upload 共有と destPath を準備してから files を順にアップロードする。
// 同名の既存ファイルは上書き。files 内で名前が重複した場合は後勝ち
func (s *AzureFilesStorage) Upload(ctx context.Context, files []FilePair, destPath string) (map[string]string, error) {
	urls := make(map[string]string, len(files))
	if len(files) == 0 {
		return urls, nil
	}

	share, err := s.EnsureShare(ctx)
	if err != nil {
		return urls, err
	}

	dir, err := s.EnsureDirectory(ctx, share, destPath)
	if err != nil {
		return urls, err
	}

	client, err := s.connection()
	if err != nil {
		return urls, err
	}

	for _, f := range files {
		if err := s.uploadFile(ctx, client, dir, f); err != nil {
			logrus.Errorf("Upload aborted after %d/%d files: %v", len(urls), len(files), err)
			return urls, err
		}

		urls[f.Name] = s.PublicURL(destPath, f.Name)
		logrus.Infof("Uploaded %s to %s/%s", f.Source, dir.Share, joinRemote(dir.Path, f.Name))
	}

	return urls, nil
}

// uploadFile ローカルファイルはこの関数内で開いて閉じる
func (s *AzureFilesStorage) uploadFile(ctx context.Context, client fileShareClient, dir Directory, f FilePair) error {
	if f.Name == "" || strings.Contains(f.Name, "/") {
		return &UploadError{Name: f.Name, Source: f.Source, Err: fmt.Errorf("invalid file name")}
	}

	src, err := os.Open(f.Source)
	if err != nil {
		return &UploadError{Name: f.Name, Source: f.Source, Err: err}
	}
	defer src.Close()

	if err := client.UploadFile(ctx, dir.Share, dir.Path, f.Name, src); err != nil {
		return &UploadError{Name: f.Name, Source: f.Source, Err: err}
	}

	return nil
}

// PublicURL <base_url>/<share>/<destPath>/<name><sas_public_token> を返す。
// destPath が空ならその階層は付けない
func (s *AzureFilesStorage) PublicURL(destPath, name string) string {
	elems := []string{s.config.Share}
	elems = append(elems, splitPath(destPath)...)
	elems = append(elems, name)

	joined, err := url.JoinPath(s.config.BaseURL, elems...)
	if err != nil {
		joined = strings.TrimRight(s.config.BaseURL, "/") + "/" + strings.Join(elems, "/")
	}

	return joined + string(s.config.SASPublicToken)
}

func splitPath(p string) []string {
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." {
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

func dirSegments(p string) ([]string, error) {
	segments := splitPath(p)
	for _, seg := range segments {
		if seg == ".." {
			return nil, fmt.Errorf("parent reference not allowed in %q", p)
		}
	}
	return segments, nil
}

func joinRemote(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
