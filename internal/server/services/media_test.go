package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/chatter/internal/server/config"
)

func newMediaService() *MediaService {
	return NewMediaService(&sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "chatter",
	})
}

func stubPresignSeams(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
}

func TestGetUploadURL(t *testing.T) {
	svc := newMediaService()
	stubPresignSeams(t)

	var gotBucket, gotKey string
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotBucket = *in.Bucket
		gotKey = *in.Key
		return &v4.PresignedHTTPRequest{URL: "http://signed/put/" + gotKey}, nil
	}

	key, url, err := svc.GetUploadURL(context.Background())
	if err != nil {
		t.Fatalf("GetUploadURL: %v", err)
	}
	if gotBucket != "chatter" {
		t.Fatalf("bucket = %q", gotBucket)
	}
	if key != gotKey || !strings.HasPrefix(key, "uploads/") {
		t.Fatalf("key = %q (presigned for %q)", key, gotKey)
	}
	if url != "http://signed/put/"+key {
		t.Fatalf("url = %q", url)
	}

	// Two calls never collide on the same key.
	key2, _, err := svc.GetUploadURL(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if key2 == key {
		t.Fatalf("keys must be unique, got %q twice", key)
	}
}

func TestGetDownloadURL(t *testing.T) {
	svc := newMediaService()
	stubPresignSeams(t)

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "http://signed/get/" + *in.Key}, nil
	}

	url, err := svc.GetDownloadURL(context.Background(), "uploads/2025/6/1/abc")
	if err != nil {
		t.Fatalf("GetDownloadURL: %v", err)
	}
	if url != "http://signed/get/uploads/2025/6/1/abc" {
		t.Fatalf("url = %q", url)
	}
}

func TestPresign_Errors(t *testing.T) {
	svc := newMediaService()
	stubPresignSeams(t)

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("put-fail")
	}
	if _, _, err := svc.GetUploadURL(context.Background()); err == nil || err.Error() != "put-fail" {
		t.Fatalf("expected put-fail, got %v", err)
	}

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	if _, err := svc.GetDownloadURL(context.Background(), "k"); err == nil || err.Error() != "load-fail" {
		t.Fatalf("expected load-fail, got %v", err)
	}
}
