package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"

	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
)

// Canonical's AWS account, owner of the official Ubuntu images.
const canonicalOwner = "099720109477"

const ubuntuImageFilter = "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*"

// AWSClient implements Client for AWS using the EC2 API.
type AWSClient struct {
	creds  coreprovider.AWSCredentials
	logger *slog.Logger
}

// NewAWSClient creates a new AWS client.
func NewAWSClient(creds coreprovider.AWSCredentials, logger *slog.Logger) *AWSClient {
	return &AWSClient{
		creds:  creds,
		logger: logger.With("provider", "aws"),
	}
}

func (c *AWSClient) newClient(region string) *ec2.Client {
	if region == "" {
		region = c.creds.Region
	}
	if region == "" {
		region = coreprovider.DefaultAWSRegion
	}
	return ec2.New(ec2.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(c.creds.AccessKeyID, c.creds.SecretAccessKey, c.creds.SessionToken),
	})
}

// Verify calls DescribeRegions, which any valid key may do.
func (c *AWSClient) Verify(ctx context.Context) error {
	_, err := c.newClient("").DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: %s: %s", ErrVerifyFailed, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	c.logger.Info("AWS credentials verified")
	return nil
}

// ListRegions returns available AWS regions.
func (c *AWSClient) ListRegions(ctx context.Context) ([]coreprovider.Region, error) {
	out, err := c.newClient("").DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("opt-in-status"), Values: []string{"opt-in-not-required", "opted-in"}},
		},
	})
	if err != nil {
		// Fall back to static catalog
		c.logger.Warn("DescribeRegions failed, using static catalog", "error", err)
		return coreprovider.AWSRegions(), nil
	}

	regions := make([]coreprovider.Region, 0, len(out.Regions))
	for _, r := range out.Regions {
		regions = append(regions, coreprovider.Region{
			ID:        aws.ToString(r.RegionName),
			Name:      aws.ToString(r.RegionName),
			Available: true,
		})
	}
	return regions, nil
}

// ResolveImage finds the newest Ubuntu 22.04 AMI in a region.
func (c *AWSClient) ResolveImage(ctx context.Context, region string) (string, error) {
	out, err := c.newClient(region).DescribeImages(ctx, &ec2.DescribeImagesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{ubuntuImageFilter}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
		Owners: []string{canonicalOwner},
	})
	if err != nil {
		return "", fmt.Errorf("failed to find Ubuntu AMI: %w", err)
	}
	if len(out.Images) == 0 {
		return "", errors.New("no Ubuntu AMI found")
	}

	return newestImage(out.Images), nil
}

// newestImage returns the ID of the image with the latest creation date.
func newestImage(images []ec2types.Image) string {
	newest := images[0]
	for _, img := range images[1:] {
		if aws.ToString(img.CreationDate) > aws.ToString(newest.CreationDate) {
			newest = img
		}
	}
	return aws.ToString(newest.ImageId)
}
