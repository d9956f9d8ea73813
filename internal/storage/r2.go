package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"artifact-publisher/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

const r2EndpointSuffix = ".r2.cloudflarestorage.com"

// 認証情報そのものが拒否されたときのエラーコード
var r2CredentialErrorCodes = map[string]bool{
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"Unauthorized":          true,
}

type R2Storage struct {
	client     *s3.Client
	bucketName string
	prefix     string
	publicBase string

	bucketMu    sync.Mutex
	bucketReady bool
}

func NewR2Storage(cfg *config.Config) (*R2Storage, error) {
	// R2設定の検証
	if cfg.R2Endpoint == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		return nil, fmt.Errorf("R2 configuration is incomplete")
	}

	accountID := r2AccountID(cfg.R2Endpoint)
	if accountID == "" {
		return nil, fmt.Errorf("invalid R2 endpoint format: %s", cfg.R2Endpoint)
	}

	return newR2Storage(cfg, fmt.Sprintf("https://%s%s", accountID, r2EndpointSuffix))
}

func newR2Storage(cfg *config.Config, endpoint string, optFns ...func(*s3.Options)) (*R2Storage, error) {
	// R2エンドポイントリゾルバー
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(r2Resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.R2AccessKeyID,
			cfg.R2SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %w", ErrConnection, err)
	}

	publicBase := cfg.R2PublicBase
	if publicBase == "" {
		publicBase = strings.TrimRight(cfg.R2Endpoint, "/") + "/" + cfg.R2BucketName
	}

	return &R2Storage{
		client:     s3.NewFromConfig(awsCfg, optFns...),
		bucketName: cfg.R2BucketName,
		prefix:     cfg.R2Prefix,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// r2AccountID エンドポイントからアカウントIDを抽出
// 例: https://a8e8211c674c2b00f3a8996b65b56447.r2.cloudflarestorage.com
func r2AccountID(endpoint string) string {
	host := strings.TrimRight(strings.TrimPrefix(endpoint, "https://"), "/")
	if host == endpoint || !strings.HasSuffix(host, r2EndpointSuffix) {
		return ""
	}
	return strings.TrimSuffix(host, r2EndpointSuffix)
}

// ensureBucket 既に自分が所有しているバケットは成功扱い。
// 最初のリモート呼び出しなので、到達不能や認証情報の拒否は ErrConnection になる
func (r *R2Storage) ensureBucket(ctx context.Context) error {
	r.bucketMu.Lock()
	defer r.bucketMu.Unlock()

	if r.bucketReady {
		return nil
	}

	_, err := r.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(r.bucketName),
	})
	if err != nil {
		var (
			owned  *types.BucketAlreadyOwnedByYou
			apiErr smithy.APIError
		)
		switch {
		case errors.As(err, &owned):
			logrus.Infof("Using existing bucket: %s", r.bucketName)
		case !errors.As(err, &apiErr), r2CredentialErrorCodes[apiErr.ErrorCode()]:
			return fmt.Errorf("%w: %s: %w", ErrConnection, r.bucketName, err)
		default:
			return fmt.Errorf("%w: %s: %w", ErrShareAccess, r.bucketName, err)
		}
	} else {
		logrus.Infof("Created bucket: %s", r.bucketName)
	}

	r.bucketReady = true
	return nil
}

func (r *R2Storage) objectKey(destPath, name string) string {
	return strings.TrimPrefix(path.Join(r.prefix, destPath, name), "/")
}

// Upload R2は階層を持たないので、ディレクトリの準備はキーの組み立てだけになる
func (r *R2Storage) Upload(ctx context.Context, files []FilePair, destPath string) (map[string]string, error) {
	urls := make(map[string]string, len(files))
	if len(files) == 0 {
		return urls, nil
	}

	if err := r.ensureBucket(ctx); err != nil {
		return urls, err
	}

	for _, f := range files {
		key := r.objectKey(destPath, f.Name)
		if err := r.putObject(ctx, f, key); err != nil {
			logrus.Errorf("Upload aborted after %d/%d files: %v", len(urls), len(files), err)
			return urls, err
		}

		urls[f.Name] = r.PublicURL(destPath, f.Name)
		logrus.Infof("Uploaded %s to R2: %s", f.Source, key)
	}

	return urls, nil
}

func (r *R2Storage) putObject(ctx context.Context, f FilePair, key string) error {
	if f.Name == "" || strings.Contains(f.Name, "/") {
		return &UploadError{Name: f.Name, Source: f.Source, Err: fmt.Errorf("invalid file name")}
	}

	file, err := os.Open(f.Source)
	if err != nil {
		return &UploadError{Name: f.Name, Source: f.Source, Err: err}
	}
	defer file.Close()

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return &UploadError{Name: f.Name, Source: f.Source, Err: err}
	}

	return nil
}

func (r *R2Storage) PublicURL(destPath, name string) string {
	return r.publicBase + "/" + r.objectKey(destPath, name)
}
