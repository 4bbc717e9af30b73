package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/fennec-cloud/tally/internal/engine"
)

// HomeRegion is used for global service calls and region discovery.
const HomeRegion = "us-east-1"

// Service names probes and account sources gate on.
const (
	ServiceEC2      = "ec2"
	ServiceEKS      = "eks"
	ServiceECS      = "ecs"
	ServiceLambda   = "lambda"
	ServiceS3       = "s3"
	ServiceRDS      = "rds"
	ServiceDynamoDB = "dynamodb"
	ServiceRedshift = "redshift"
	ServiceECR      = "ecr"
)

// AllServices returns every service tally knows how to probe.
func AllServices() []string {
	return []string{
		ServiceEC2,
		ServiceEKS,
		ServiceECS,
		ServiceLambda,
		ServiceS3,
		ServiceRDS,
		ServiceDynamoDB,
		ServiceRedshift,
		ServiceECR,
	}
}

// ConfigSource yields per-account, per-region SDK configs. The profile
// source maps accounts to shared-config profiles, the role source
// assumes a role in each account from the caller's own credentials.
type ConfigSource interface {
	Config(ctx context.Context, acct engine.Account, region string) (aws.Config, error)
}

// ProfileConfigs resolves accounts to local shared-config profiles.
// The account ID carries the profile name.
type ProfileConfigs struct{}

func (ProfileConfigs) Config(ctx context.Context, acct engine.Account, region string) (aws.Config, error) {
	if region == "" {
		region = HomeRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if acct.ID != "" && acct.ID != "default" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(acct.ID))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading config for profile %s: %w", acct.ID, err)
	}
	return cfg, nil
}

// RoleConfigs assumes RoleName in each target account, the way
// organization-wide scans reach member accounts.
type RoleConfigs struct {
	RoleName string
}

func (r RoleConfigs) Config(ctx context.Context, acct engine.Account, region string) (aws.Config, error) {
	if region == "" {
		region = HomeRegion
	}
	base, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading base config: %w", err)
	}
	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", acct.ID, r.RoleName)
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(base), roleARN)
	base.Credentials = aws.NewCredentialsCache(provider)
	return base, nil
}
