package s3impl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/orgball2608/fary-stories/internal/media"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"go.uber.org/fx"
)

// cidMetadataKey is the object metadata S3-compatible pinning services
// (e.g. Filebase) use to expose the IPFS content id.
const cidMetadataKey = "cid"

// objectAPI is the part of *s3.Client the store needs.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type Opts struct {
	fx.In
	Config *config.Config
	Logger logger.Logger
}

type Store struct {
	client        objectAPI
	bucket        string
	publicBaseURL string
	ipfsGateway   string
	logger        logger.Logger
}

var _ media.Store = (*Store)(nil)

func New(opts Opts) (*Store, error) {
	s3cfg := opts.Config.S3

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(s3cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3cfg.AccessKey,
			s3cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.UsePathStyle
	})

	return newStore(client, s3cfg.Bucket, s3cfg.PublicBaseURL, s3cfg.IPFSGateway, opts.Logger), nil
}

func newStore(client objectAPI, bucket, publicBaseURL, ipfsGateway string, log logger.Logger) *Store {
	return &Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		ipfsGateway:   strings.TrimRight(ipfsGateway, "/"),
		logger:        log.WithComponent("MediaStore"),
	}
}

// Put uploads body under key. With an IPFS gateway configured the returned
// URL points at the pinned content id, otherwise at the public base URL.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	// The SDK needs a seekable body to sign the payload.
	seekable, ok := body.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read media: %w", err)
		}
		seekable = bytes.NewReader(buf)
		size = int64(len(buf))
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          seekable,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", media.ErrUploadFailed, key, err)
	}

	if s.ipfsGateway == "" {
		return s.publicBaseURL + "/" + key, nil
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("%w: head %s: %v", media.ErrUploadFailed, key, err)
	}

	cid := head.Metadata[cidMetadataKey]
	if cid == "" {
		s.logger.Warn("Uploaded object has no cid, using public URL", "key", key)
		return s.publicBaseURL + "/" + key, nil
	}

	s.logger.Debug("Media pinned", "key", key, "cid", cid)
	return s.ipfsGateway + "/ipfs/" + cid, nil
}
