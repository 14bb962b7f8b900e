package aws

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog/log"
)

// DefaultRegion is used for account-wide calls when no region is configured.
const DefaultRegion = "us-east-1"

// defaultRetryAttempts raises the SDK's standard retryer budget for the
// long tail of throttled describe calls in large accounts.
const defaultRetryAttempts = 5

// LoadConfig loads the AWS SDK configuration for a shared-config profile.
// If profile is empty, the default credential chain is used.
// If region is empty, the default region from config/env is used, then
// DefaultRegion.
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(defaultRetryAttempts),
	}

	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	return cfg, nil
}

// Regional returns a copy of the AWS config with the region overridden.
func Regional(cfg aws.Config, region string) aws.Config {
	c := cfg.Copy()
	c.Region = region
	return c
}

// RegionsAPI is the minimal interface for region discovery.
type RegionsAPI interface {
	DescribeRegions(ctx context.Context, input *ec2.DescribeRegionsInput, opts ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// RegionDiscovery lists the regions enabled for a set of credentials.
type RegionDiscovery struct {
	newClient func(aws.Config) RegionsAPI
}

// NewRegionDiscovery creates a discovery backed by EC2 DescribeRegions.
func NewRegionDiscovery() *RegionDiscovery {
	return &RegionDiscovery{newClient: func(cfg aws.Config) RegionsAPI {
		return ec2.NewFromConfig(cfg)
	}}
}

// ListRegions returns all enabled regions for the account, sorted.
func (d *RegionDiscovery) ListRegions(ctx context.Context, cfg aws.Config) ([]string, error) {
	if cfg.Region == "" {
		cfg = Regional(cfg, DefaultRegion)
	}

	out, err := d.newClient(cfg).DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	slices.Sort(regions)

	log.Debug().Int("count", len(regions)).Msg("Discovered enabled regions")
	return regions, nil
}
