package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/directory"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/fileerror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"
)

// azfileClient fileShareClient の Azure SDK 実装
type azfileClient struct {
	service *service.Client
}

func dialAzureFiles(baseURL string, cred Credentials) (fileShareClient, error) {
	var (
		svc *service.Client
		err error
	)

	switch {
	case cred.AccountKey != "":
		keyCred, keyErr := service.NewSharedKeyCredential(cred.AccountName, cred.AccountKey)
		if keyErr != nil {
			return nil, fmt.Errorf("invalid shared key credential: %w", keyErr)
		}
		svc, err = service.NewClientWithSharedKeyCredential(baseURL, keyCred, nil)
	case cred.SASToken != "":
		svc, err = service.NewClientWithNoCredential(withSASToken(baseURL, cred.SASToken), nil)
	default:
		return nil, fmt.Errorf("no Azure Files credentials configured")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Files client: %w", err)
	}

	return &azfileClient{service: svc}, nil
}

func (c *azfileClient) CreateShare(ctx context.Context, share string) error {
	_, err := c.service.NewShareClient(share).Create(ctx, nil)
	return classifyError(err)
}

func (c *azfileClient) CreateDirectory(ctx context.Context, share, dirPath string) error {
	_, err := c.service.NewShareClient(share).NewDirectoryClient(dirPath).Create(ctx, nil)
	return classifyError(err)
}

func (c *azfileClient) UploadFile(ctx context.Context, share, dirPath, name string, src *os.File) error {
	shareClient := c.service.NewShareClient(share)

	var dir *directory.Client
	if dirPath == "" {
		dir = shareClient.NewRootDirectoryClient()
	} else {
		dir = shareClient.NewDirectoryClient(dirPath)
	}
	fileClient := dir.NewFileClient(name)

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src.Name(), err)
	}

	// Create は既存ファイルを置き換えるので、これで上書きになる
	if _, err := fileClient.Create(ctx, info.Size(), nil); err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}

	if info.Size() == 0 {
		return nil
	}

	if err := fileClient.UploadFile(ctx, src, nil); err != nil {
		return fmt.Errorf("failed to write remote file: %w", err)
	}

	return nil
}

// classifyError 既存リソースへの作成は errAlreadyExists、
// サービスの応答がない場合と認証拒否は errUnreachable として扱う
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if fileerror.HasCode(err, fileerror.ShareAlreadyExists, fileerror.ResourceAlreadyExists) {
		return fmt.Errorf("%w: %w", errAlreadyExists, err)
	}

	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) || fileerror.HasCode(err, fileerror.AuthenticationFailed, fileerror.AuthorizationFailure) {
		return fmt.Errorf("%w: %w", errUnreachable, err)
	}
	return err
}

func withSASToken(baseURL, token string) string {
	token = strings.TrimPrefix(token, "?")
	if token == "" {
		return baseURL
	}
	if strings.Contains(baseURL, "?") {
		return baseURL + "&" + token
	}
	return baseURL + "?" + token
}
