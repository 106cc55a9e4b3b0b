// Package s3store keeps uploaded files in an S3 compatible bucket.
package s3store

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/attachment"
)

// ObjectAPI is the subset of the S3 client the store needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Store struct {
	client  ObjectAPI
	bucket  string
	baseURL string
	prefix  string
}

var _ attachment.Store = (*Store)(nil) // interface compliance check

// NewClient builds the S3 client from conf.S3. Static credentials are used when set, otherwise
// the default AWS credential chain applies.
func NewClient(ctx context.Context, conf *core.Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(conf.S3.Region)}
	if conf.S3.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.S3.AccessKeyID, conf.S3.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.S3.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// New returns a store writing to conf.S3.Bucket. Objects are addressed by conf.S3.PublicBaseURL.
func New(client ObjectAPI, conf *core.Config) *Store {
	return &Store{
		client:  client,
		bucket:  conf.S3.Bucket,
		baseURL: strings.TrimSuffix(conf.S3.PublicBaseURL, "/"),
		prefix:  "uploads/",
	}
}

// Save uploads r with an explicit length. Streams that cannot seek are buffered first.
func (s *Store) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	body, size, err := sizedBody(r)
	if err != nil {
		return "", errors.Wrapf(err, "buffering %s", name)
	}

	key := s.prefix + name
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "putting %s", key)
	}
	return s.baseURL + "/" + key, nil
}

// sizedBody returns a seekable view of r and the number of bytes left in it.
func sizedBody(r io.Reader) (io.ReadSeeker, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		cur, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, err
		}
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if _, err = rs.Seek(cur, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return rs, end - cur, nil
	}

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func (s *Store) Remove(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL+"/") {
		return errors.Errorf("%s is not stored in bucket %s", url, s.bucket)
	}
	key := strings.TrimPrefix(url, s.baseURL+"/")
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "deleting %s", key)
}
