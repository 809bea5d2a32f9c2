package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Credential is the JSON document a user submits for an S3 connection. It is
// stored encrypted in the access token column.
type S3Credential struct {
	AccessKeyID     string `json:"accessKeyId" binding:"required"`
	SecretAccessKey string `json:"secretAccessKey" binding:"required"`
	Bucket          string `json:"bucket" binding:"required"`
	Region          string `json:"region"`
	Prefix          string `json:"prefix"`
	// S3 compatible services only.
	Endpoint string `json:"endpoint"`
}

func ParseS3Credential(raw string) (S3Credential, error) {
	var c S3Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return S3Credential{}, fmt.Errorf("%w: s3 credential is not json", ErrStorageCredentialInvalid)
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Bucket == "" {
		return S3Credential{}, fmt.Errorf("%w: s3 credential is missing keys or bucket", ErrStorageCredentialInvalid)
	}
	return c, nil
}

func (c S3Credential) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type S3Uploader struct {
	defaultRegion string
}

func NewS3Uploader(defaultRegion string) *S3Uploader {
	return &S3Uploader{defaultRegion: defaultRegion}
}

func (su *S3Uploader) client(c S3Credential) *s3.Client {
	region := c.Region
	if region == "" {
		region = su.defaultRegion
	}

	return s3.New(s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")),
	}, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})
}

func (su *S3Uploader) Upload(ctx context.Context, cred Credential, fileName string, body []byte) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	c, err := ParseS3Credential(cred.AccessToken)
	if err != nil {
		return "", err
	}

	key := path.Join(strings.Trim(c.Prefix, "/"), path.Base("/"+fileName))
	if _, err := su.client(c).PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/pdf"),
	}); err != nil {
		return "", err
	}

	return key, nil
}
