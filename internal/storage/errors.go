package storage

import (
	"errors"
	"fmt"
)

var (
	ErrConnection      = errors.New("storage connection failed")
	ErrShareAccess     = errors.New("share access failed")
	ErrDirectoryCreate = errors.New("directory creation failed")
	ErrUpload          = errors.New("file upload failed")

	// トランスポートが返す分類用エラー
	errAlreadyExists = errors.New("resource already exists")
	errUnreachable   = errors.New("service unreachable or credentials rejected")
)

// UploadError Upload を中断させたファイルを示す
type UploadError struct {
	Name   string
	Source string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%v: %s (from %s): %v", ErrUpload, e.Name, e.Source, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUpload
}
