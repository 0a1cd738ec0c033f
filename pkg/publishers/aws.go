package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadAWSConfig resolves the default AWS config for access, overriding credentials when static keys
// are configured.
func loadAWSConfig(ctx context.Context, access AWSAccess) (aws.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(access.Region)}
	if access.AccessKeyID != "" && access.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(access.AccessKeyID, access.SecretAccessKey, ""),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if access.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(access.Endpoint)
	}
	return cfg, nil
}

// digestAttributes are the string attributes attached to queue and topic messages.
func digestAttributes(evt Event) map[string]string {
	return map[string]string{
		"digest_id":    evt.DigestID,
		"recent_count": fmt.Sprintf("%d", evt.Report.RecentCount),
	}
}
