package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/objfs/internal/logger"
	"github.com/marmos91/objfs/pkg/objstore"
	objstoreBadger "github.com/marmos91/objfs/pkg/objstore/badger"
	objstoreMemory "github.com/marmos91/objfs/pkg/objstore/memory"
	objstoreS3 "github.com/marmos91/objfs/pkg/objstore/s3"
)

// CreateObjectStore creates an object store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": in-memory storage, ephemeral
//   - "badger": BadgerDB storage, persistent
//   - "s3": Amazon S3 or compatible storage
func CreateObjectStore(ctx context.Context, cfg *StoreConfig) (objstore.Store, error) {
	conn := objstore.Connection{Pool: cfg.Pool, Container: cfg.Container}

	switch cfg.Type {
	case "memory":
		return objstoreMemory.NewMemoryStore(conn), nil
	case "badger":
		return createBadgerStore(ctx, conn, cfg.Badger)
	case "s3":
		return createS3Store(ctx, conn, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown object store type: %q (supported: memory, badger, s3)", cfg.Type)
	}
}

// createBadgerStore creates a BadgerDB-backed persistent object store.
func createBadgerStore(ctx context.Context, conn objstore.Connection, options map[string]any) (objstore.Store, error) {
	type BadgerStoreOptions struct {
		DBPath         string `mapstructure:"db_path"`
		InMemory       bool   `mapstructure:"in_memory"`
		VerboseLogging bool   `mapstructure:"verbose_logging"`
	}

	var storeOpts BadgerStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger store options: %w", err)
	}

	if storeOpts.DBPath == "" && !storeOpts.InMemory {
		return nil, fmt.Errorf("badger store: db_path is required unless in_memory is set")
	}

	store, err := objstoreBadger.NewBadgerStore(ctx, conn, objstoreBadger.Options{
		Dir:            storeOpts.DBPath,
		InMemory:       storeOpts.InMemory,
		VerboseLogging: storeOpts.VerboseLogging,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}
	return store, nil
}

// createS3Store creates an S3-backed object store.
func createS3Store(ctx context.Context, conn objstore.Connection, options map[string]any) (objstore.Store, error) {
	type S3StoreOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeOpts S3StoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store options: %w", err)
	}

	if storeOpts.Bucket == "" {
		return nil, fmt.Errorf("S3 store: bucket is required")
	}
	if storeOpts.Region == "" {
		return nil, fmt.Errorf("S3 store: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeOpts.Region))

	// Custom endpoint for MinIO, Localstack, etc.
	if storeOpts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeOpts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeOpts.AccessKeyID != "" && storeOpts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeOpts.AccessKeyID,
			storeOpts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeOpts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if storeOpts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Object Store
	// ========================================================================

	store, err := objstoreS3.NewS3Store(ctx, conn, objstoreS3.Config{
		Client:    client,
		Bucket:    storeOpts.Bucket,
		KeyPrefix: storeOpts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}

	logger.Info("S3 object store initialized: bucket=%s, region=%s, prefix=%s",
		storeOpts.Bucket, storeOpts.Region, storeOpts.KeyPrefix)

	return store, nil
}
