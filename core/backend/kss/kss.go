package kss

import (
	"context"
	"io"
)

// kss package provides functionality to store uploaded files outside of the entity collections.
// There are currently two possible backends: a local file system and AWS S3

// Driver defines the interface for the KSS service
type Driver interface {
	// Put stores the content of body under key
	Put(ctx context.Context, key string, body io.Reader) error
	// Path returns the stable reference path under which key is served
	Path(key string) string
	// Delete deletes the file stored under key
	Delete(ctx context.Context, key string) error
}

// DriverType represents the different type of KSS Drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the KSS service
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation of the KSS service
const DriverTypeAWSS3 DriverType = "AWSS3"

// Configuration contains the configuration for the KSS service
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// LocalConfiguration contains the configuration for the local filesystem KSS service
type LocalConfiguration struct {
	// BasePath is the folder files are stored in
	BasePath string
	// PublicPath is the route prefix files are served under. Defaults to /uploads
	PublicPath string
}

// S3Configuration contains the configuration for the S3 KSS service
type S3Configuration struct {
	AccessID      string
	AccessKey     string
	AWSRegion     string
	AWSBucketName string
	KeyPrefix     string
	// Endpoint overrides the S3 endpoint, e.g. for S3 compatible stores. Optional.
	Endpoint string
	// PublicURL is the base URL objects are served from. Defaults to the bucket's
	// virtual hosted URL.
	PublicURL string
}
