package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/platform/env"
)

type Config struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Region          string
	UseSSL          bool
	BucketRaw       string
	BucketHarmonise string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("HARMONIA_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:        env.String("HARMONIA_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:       env.String("HARMONIA_MINIO_ACCESS_KEY", "harmonia"),
		SecretKey:       env.String("HARMONIA_MINIO_SECRET_KEY", "harmoniaminio"),
		Region:          env.String("HARMONIA_MINIO_REGION", "us-east-1"),
		UseSSL:          useSSL,
		BucketRaw:       env.String("HARMONIA_MINIO_BUCKET_RAW", "raw-data"),
		BucketHarmonise: env.String("HARMONIA_MINIO_BUCKET_HARMONISED", "harmonised-data"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketRaw) == "" {
		return errors.New("raw bucket is required")
	}
	if strings.TrimSpace(c.BucketHarmonise) == "" {
		return errors.New("harmonised bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
