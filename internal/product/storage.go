package product

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageStore persists uploaded product images and returns their public paths.
type ImageStore interface {
	Save(fh *multipart.FileHeader) (string, error)
	Remove(publicPaths ...string)
}

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// DiskImageStore writes images to Dir and serves them under URLPrefix.
type DiskImageStore struct {
	Dir       string
	URLPrefix string
}

func NewDiskImageStore(dir, urlPrefix string) (*DiskImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskImageStore{Dir: dir, URLPrefix: urlPrefix}, nil
}

func (s *DiskImageStore) Save(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExt[ext] {
		return "", fmt.Errorf("%w: %s", ErrInvalidImage, fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	return path.Join(s.URLPrefix, name), nil
}

func (s *DiskImageStore) Remove(publicPaths ...string) {
	for _, p := range publicPaths {
		name := path.Base(p)
		if name == "." || name == "/" {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !os.IsNotExist(err) {
			logger.L().Warn("failed to remove uploaded image", zap.String("path", p), zap.Error(err))
		}
	}
}
