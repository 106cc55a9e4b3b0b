// Package filestore keeps uploaded files on the local disk.
package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/attachment"
)

var ErrInvalidName = errors.New("invalid file name")

type LocalStore struct {
	dir       string
	urlPrefix string
}

var _ attachment.Store = (*LocalStore)(nil) // interface compliance check

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(conf *core.Config) (*LocalStore, error) {
	if err := os.MkdirAll(conf.Uploads.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", conf.Uploads.Dir)
	}
	return &LocalStore{
		dir:       conf.Uploads.Dir,
		urlPrefix: strings.TrimSuffix(conf.Uploads.URLPrefix, "/"),
	}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) URLPrefix() string { return s.urlPrefix }

func (s *LocalStore) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errors.WithStack(err)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrap(err, "closing file")
	}
	return s.urlPrefix + "/" + name, nil
}

func (s *LocalStore) Remove(_ context.Context, url string) error {
	if !strings.HasPrefix(url, s.urlPrefix+"/") {
		return errors.Wrapf(ErrInvalidName, "%s is not a local upload", url)
	}
	path, err := s.path(strings.TrimPrefix(url, s.urlPrefix+"/"))
	if err != nil {
		return err
	}
	return errors.WithStack(os.Remove(path))
}

func (s *LocalStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", errors.Wrap(ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}
