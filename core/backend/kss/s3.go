package kss

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/relabs-tech/kadmin/core/logger"
)

// s3Client is the part of the S3 API the driver uses
type s3Client interface {
	manager.UploadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 is the implementation of the KSS Driver for AWS S3
type S3 struct {
	client      s3Client
	uploader    *manager.Uploader
	bucket      string
	baseKeyName string
	publicURL   string
}

// NewS3 returns a new S3
func NewS3(kssConfig S3Configuration) (*S3, error) {
	if kssConfig.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}

	cfg, err := config.LoadDefaultConfig(
		context.TODO(),
		config.WithRegion(kssConfig.AWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(kssConfig.AccessID, kssConfig.AccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if kssConfig.Endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(kssConfig.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := kssConfig.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", kssConfig.AWSBucketName, kssConfig.AWSRegion)
	}
	logger.Default().Debugln("KSS S3 enabled")
	return newS3(client, kssConfig.AWSBucketName, kssConfig.KeyPrefix, publicURL), nil
}

func newS3(client s3Client, bucket, keyPrefix, publicURL string) *S3 {
	return &S3{
		client:      client,
		uploader:    manager.NewUploader(client),
		bucket:      bucket,
		baseKeyName: keyPrefix,
		publicURL:   strings.TrimSuffix(publicURL, "/"),
	}
}

// Put implements Driver. Large bodies are uploaded in parts.
func (s *S3) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file %s: %w", s.baseKeyName+key, err)
	}
	return nil
}

// Path implements Driver
func (s *S3) Path(key string) string {
	return s.publicURL + "/" + s.baseKeyName + key
}

// Delete implements Driver
func (s *S3) Delete(ctx context.Context, key string) error {
	logger.FromContext(ctx).Infoln("Deleting ", s.baseKeyName+key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
	})
	if err != nil {
		return fmt.Errorf("could not delete %s: %w", s.baseKeyName+key, err)
	}
	return nil
}
