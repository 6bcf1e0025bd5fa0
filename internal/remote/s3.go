package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config encapsulates the connection info for AWS S3.
type S3Config struct {
	Region     string
	Endpoint   string // optional, for S3-compatible services
	AccessKey  string // optional, falls back to the SDK credential chain
	SecretKey  string
	PathStyle  bool
	DisableSSL bool
}

// S3 implements Store on top of aws-sdk-go.
type S3 struct {
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

// presignWindow pins the signing time to the start of the current
// Unix-aligned window so repeated presigns inside it yield the same URL.
const presignWindow = 1000 * time.Second

func NewS3(cfg S3Config) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := &aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
		DisableSSL:       aws.Bool(cfg.DisableSSL),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	client := s3.New(sess)
	return &S3{
		client:     client,
		uploader:   s3manager.NewUploaderWithClient(client),
		downloader: s3manager.NewDownloaderWithClient(client),
	}, nil
}

func (s *S3) Upload(ctx context.Context, bucket, key, srcPath string, opts PutOptions) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	input := &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.StorageClass != "" {
		input.StorageClass = aws.String(string(opts.StorageClass))
	}
	if opts.Encryption != EncryptionNone {
		input.ServerSideEncryption = aws.String(string(opts.Encryption))
	}

	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return s3Err("put", bucket, key, err)
	}
	return nil
}

func (s *S3) Download(ctx context.Context, bucket, key, destPath string) error {
	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	_, err = s.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if cerr := f.Close(); err == nil && cerr != nil {
		return fmt.Errorf("close destination: %w", cerr)
	}
	if err != nil {
		return s3Err("get", bucket, key, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s3Err("delete", bucket, key, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	err = s3Err("head", bucket, key, err)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *S3) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts CopyOptions) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(url.PathEscape(bucket + "/" + srcKey)),
		Key:        aws.String(dstKey),
	}
	if opts.StorageClass != "" {
		input.StorageClass = aws.String(string(opts.StorageClass))
	}
	if opts.Encryption != EncryptionNone {
		input.ServerSideEncryption = aws.String(string(opts.Encryption))
	}
	if _, err := s.client.CopyObjectWithContext(ctx, input); err != nil {
		return s3Err("copy", bucket, srcKey, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var results []ObjectInfo
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			results = append(results, ObjectInfo{
				Key:  aws.StringValue(obj.Key),
				Size: aws.Int64Value(obj.Size),
			})
		}
		return true
	})
	if err != nil {
		return nil, s3Err("list", bucket, prefix, err)
	}
	return results, nil
}

func (s *S3) SignedURL(ctx context.Context, bucket, key string, expires time.Time, options map[string]string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	for k, v := range options {
		switch k {
		case OptionSecure:
		case "response-content-type":
			input.ResponseContentType = aws.String(v)
		case "response-content-disposition":
			input.ResponseContentDisposition = aws.String(v)
		case "response-content-language":
			input.ResponseContentLanguage = aws.String(v)
		case "response-content-encoding":
			input.ResponseContentEncoding = aws.String(v)
		case "response-cache-control":
			input.ResponseCacheControl = aws.String(v)
		case "response-expires":
			t, err := time.Parse(http.TimeFormat, v)
			if err != nil {
				return "", fmt.Errorf("invalid response-expires %q: %w", v, err)
			}
			input.ResponseExpires = aws.Time(t)
		default:
			return "", fmt.Errorf("url option %q: %w", k, ErrNotSupported)
		}
	}

	req, _ := s.client.GetObjectRequest(input)
	window := int64(presignWindow / time.Second)
	signedAt := time.Unix(time.Now().Unix()/window*window, 0).UTC()
	req.Time = signedAt

	link, err := req.Presign(expires.Sub(signedAt))
	if err != nil {
		return "", s3Err("presign", bucket, key, err)
	}
	return secureLink(link, options)
}

func s3Err(op, bucket, key string, err error) error {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("s3 %s %s/%s: %w", op, bucket, key, ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("s3 %s %s/%s: %w: %v", op, bucket, key, ErrAccessDenied, err)
		}
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return fmt.Errorf("s3 %s %s/%s: %w", op, bucket, key, ErrNotFound)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("s3 %s %s/%s: %w: %v", op, bucket, key, ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("s3 %s %s/%s: %w: %v", op, bucket, key, ErrUnavailable, err)
}

// secureLink upgrades the scheme when the caller asked for a secure link.
func secureLink(link string, options map[string]string) (string, error) {
	if options[OptionSecure] != "true" {
		return link, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse signed url: %w", err)
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

var _ Store = (*S3)(nil)
