package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/defaults"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Storage implements the Storage interface for interacting with AWS S3.
type S3Storage struct {
	Config  Config
	Session *session.Session
}

// NewS3Storage creates a new S3Storage with a new aws.Session.
func NewS3Storage(config Config) S3Storage {
	return S3Storage{
		Config:  config,
		Session: newAWSSession(config),
	}
}

// NewS3StorageWithSession returns a new S3Storage with a given AWS Session.
func NewS3StorageWithSession(config Config,
	session *session.Session) S3Storage {

	return S3Storage{
		Config:  config,
		Session: session,
	}
}

// Write writes the data to the key in the S3 Bucket, with Options applied.
func (s S3Storage) Write(ctx context.Context,
	key string,
	body []byte,
	options *Options) error {

	svc := s3.New(s.Session)

	poi := s3.PutObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.buildKey(key)),
		Body:   bytes.NewReader(body),
	}

	if options != nil {
		if options.TTL > 0 {
			expiry := time.Now().Add(time.Duration(options.TTL) * time.Second)
			poi.Expires = &expiry
		}
	}

	if _, err := svc.PutObjectWithContext(ctx, &poi); err != nil {
		return fmt.Errorf("Failed to write to %v : %v", key, err)
	}

	return nil
}

// Read will read the data from the S3 Bucket.
func (s S3Storage) Read(ctx context.Context, key string) ([]byte, error) {
	svc := s3.New(s.Session)

	document, err := svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.buildKey(key)),
	})

	if err != nil {
		if isNotFound(err) {
			// specifically handle the "not found" case
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("Failed to read from %v : %v", key, err)
	}
	defer document.Body.Close()

	b, err := io.ReadAll(document.Body)
	if err != nil {
		return nil, fmt.Errorf("Error reading body : %v", err)
	}

	return b, nil
}

// Remove removes the object stored at key, in the S3 Bucket.
func (s S3Storage) Remove(ctx context.Context, key string) error {
	svc := s3.New(s.Session)

	do := &s3.DeleteObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.buildKey(key)),
	}

	if _, err := svc.DeleteObjectWithContext(ctx, do); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}

		return fmt.Errorf("Failed to delete object at %v : %v", key, err)
	}

	return nil
}

// Search downloads every object directly under query["path"].
func (s S3Storage) Search(ctx context.Context,
	query map[string]string) ([][]byte, error) {

	keys, err := s.List(ctx, query["path"])
	if err != nil {
		return nil, err
	}

	objects := make([][]byte, 0, len(keys))
	for _, k := range keys {
		b, err := s.Read(ctx, k)
		if err != nil {
			if err == ErrNotFound {
				continue // removed since listing
			}
			return nil, err
		}
		objects = append(objects, b)
	}

	return objects, nil
}

// Clear removes every object directly under query["path"].
func (s S3Storage) Clear(ctx context.Context, query map[string]string) error {
	keys, err := s.List(ctx, query["path"])
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := s.Remove(ctx, k); err != nil && err != ErrNotFound {
			return err
		}
	}

	return nil
}

// List returns the keys directly under path, relative to the configured root.
func (s S3Storage) List(ctx context.Context, path string) ([]string, error) {
	svc := s3.New(s.Session)

	prefix := s.buildKey(path)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.Config.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}

	var keys []string
	err := svc.ListObjectsV2PagesWithContext(ctx, input,
		func(out *s3.ListObjectsV2Output, last bool) bool {
			for _, o := range out.Contents {
				keys = append(keys, s.relativeKey(aws.StringValue(o.Key)))
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("Failed to list %v : %v", path, err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (s S3Storage) buildKey(key string) string {
	root := strings.Trim(s.Config.Root, "/")
	if len(root) == 0 || root == "." {
		return key
	}
	if len(key) == 0 {
		return root
	}
	return root + "/" + key
}

func (s S3Storage) relativeKey(key string) string {
	root := strings.Trim(s.Config.Root, "/")
	if len(root) == 0 || root == "." {
		return key
	}
	return strings.TrimPrefix(key, root+"/")
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return strings.HasPrefix(err.Error(), "NoSuchKey")
}

// newAwsSession creates a new AWS Session from the credentials in the
// Config.
func newAWSSession(config Config) *session.Session {
	// Get the default cred chain
	awsDefaults := defaults.Get()
	defaultCredProviders := defaults.CredProviders(awsDefaults.Config, awsDefaults.Handlers)

	// Define custom static cred provider
	staticCreds := &credentials.StaticProvider{Value: credentials.Value{
		AccessKeyID:     config.AccessKey,
		SecretAccessKey: config.Secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}}

	// Append static creds to the defaults
	customCredProviders := append([]credentials.Provider{staticCreds}, defaultCredProviders...)
	creds := credentials.NewChainCredentials(customCredProviders)

	awsConfig := aws.NewConfig().
		WithCredentials(creds).
		WithMaxRetries(config.MaxRetries)

	if len(config.Region) > 0 {
		awsConfig = awsConfig.WithRegion(config.Region)
	}

	return session.Must(session.NewSession(awsConfig))
}
