package backend

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yoyama/bakthat/internal/config"
)

// LoadAWSConfig builds an aws.Config from a bakthat profile using static
// credentials and the profile's region.
func LoadAWSConfig(ctx context.Context, p *config.Profile) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(p.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			p.AccessKey,
			p.SecretKey,
			"",
		)))
}

// NewS3Client builds the raw S3 client for a profile. A non-empty
// S3Endpoint overrides the endpoint, which is how the integration setup
// points at MinIO.
func NewS3Client(cfg aws.Config, p *config.Profile) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if p.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(p.S3Endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewGlacierClient builds the raw Glacier client for a profile.
func NewGlacierClient(cfg aws.Config) *glacier.Client {
	return glacier.NewFromConfig(cfg)
}
