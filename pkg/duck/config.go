package duck

import (
	"os"
	"strings"
)

// S3Config carries the connection details for the bucket holding raw
// downloads and published results. Zero-value credentials fall back to
// the default AWS credential chain.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	URLStyle        string
	UseSSL          bool
}

// LoadS3ConfigFromEnv builds an S3Config from S3_* variables, falling
// back to the standard AWS_* ones. Returns nil when nothing is set, in
// which case callers should skip S3 wiring entirely and run against
// the local filesystem.
func LoadS3ConfigFromEnv() *S3Config {
	endpoint := envOr("S3_ENDPOINT", "AWS_ENDPOINT_URL")
	region := envOr("S3_REGION", "AWS_REGION")
	accessKey := envOr("S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	secretKey := envOr("S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")

	if endpoint == "" && region == "" && accessKey == "" {
		return nil
	}

	cfg := &S3Config{
		Endpoint:        endpoint,
		Region:          region,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		UseSSL:          !strings.HasPrefix(endpoint, "http://"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-west-2"
	}
	// MinIO and other S3 compatibles generally only speak path-style.
	if endpoint != "" && !strings.Contains(endpoint, "amazonaws.com") {
		cfg.URLStyle = "path"
	} else {
		cfg.URLStyle = "vhost"
	}
	return cfg
}

func envOr(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
