package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"teachable-dl/internal/config"
	"teachable-dl/internal/retry"
	"teachable-dl/internal/storage"
	"teachable-dl/internal/teachable"
)

func newAPIClient(cfg config.Config, logger *logrus.Logger) *teachable.Client {
	return teachable.NewClient(teachable.Config{
		APIKey:        cfg.API.Key,
		BaseURL:       cfg.API.BaseURL,
		AdminDomain:   cfg.API.AdminDomain,
		MaxConcurrent: cfg.API.MaxConcurrent,
		PerPage:       cfg.API.PerPage,
		Timeout:       cfg.API.RequestTimeout,
		Retry: retry.Policy{
			MaxAttempts:  cfg.API.MaxRetries,
			InitialDelay: cfg.API.InitialDelay,
			Factor:       cfg.API.BackoffFactor,
		},
		Logger: logger,
	})
}

// buildMirror returns the optional S3 mirror; a missing bucket disables it.
func buildMirror(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, storage.UploadOptions, error) {
	if cfg.Storage.Bucket == "" {
		return nil, storage.UploadOptions{}, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, storage.UploadOptions{}, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.WithFields(logrus.Fields{
		"bucket": cfg.Storage.Bucket,
		"region": cfg.Storage.Region,
	}).Info("mirroring completed files to s3")

	return storage.NewS3Service(client), storage.UploadOptions{
		Bucket:    cfg.Storage.Bucket,
		KeyPrefix: cfg.Storage.KeyPrefix,
	}, nil
}
