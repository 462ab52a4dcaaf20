package main

import (
	"errors"
	"strings"

	"github.com/joeshaw/envdecode"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Port     int    `env:"PORT,default=4000" description:"the port to listen on"`
	LogLevel string `env:"LOG_LEVEL,default=info" description:"the log level"`
	Secret   string `env:"SECRET" description:"the secret for password digests and tokens"`

	Store            string `env:"STORE,default=memory" description:"the entity store: memory, postgres or mongo"`
	Postgres         string `env:"POSTGRES" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" description:"password to the Postgres DB"`
	PostgresSchema   string `env:"POSTGRES_SCHEMA,default=kadmin" description:"the schema of the entity tables"`
	Mongo            string `env:"MONGO" description:"the connection uri for MongoDB"`
	MongoDatabase    string `env:"MONGO_DATABASE,default=kadmin" description:"the MongoDB database"`

	KSS              string `env:"KSS,default=Local" description:"the file storage driver: Local or AWSS3"`
	UploadDir        string `env:"UPLOAD_DIR,default=./uploads" description:"the folder of uploaded files for the Local driver"`
	AWSBucketName    string `env:"AWS_BUCKET_NAME" description:"the bucket of uploaded files for the AWSS3 driver"`
	AWSRegion        string `env:"AWS_REGION,default=eu-central-1" description:"the AWS region"`
	AWSAccessID      string `env:"AWS_ACCESS_ID" description:"the AWS access key id"`
	AWSAccessKey     string `env:"AWS_ACCESS_KEY" description:"the AWS secret access key"`
	S3KeyPrefix      string `env:"S3_KEY_PREFIX" description:"the prefix of uploaded objects"`
	S3Endpoint       string `env:"S3_ENDPOINT" description:"an S3 compatible endpoint"`
	S3PublicURL      string `env:"S3_PUBLIC_URL" description:"the base URL uploaded objects are served from"`
	KafkaBrokers     string `env:"KAFKA_BROKERS" description:"comma separated Kafka brokers for entity events"`
	KafkaTopic       string `env:"KAFKA_TOPIC,default=kadmin" description:"the Kafka topic for entity events"`
	SQSQueueURL      string `env:"SQS_QUEUE_URL" description:"the SQS queue for entity events"`
	CORSOrigins      string `env:"CORS_ORIGINS" description:"comma separated allowed origins"`
	CompressionLevel int    `env:"COMPRESSION_LEVEL" description:"the gzip level of responses"`
}

func loadService() (*Service, error) {
	s := &Service{}
	if err := envdecode.Decode(s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	return s, nil
}

func splitList(s string) []string {
	result := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
