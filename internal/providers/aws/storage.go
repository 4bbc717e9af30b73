package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fennec-cloud/tally/internal/engine"
)

// Listing past this many buckets in one account adds nothing to the
// sizing picture and only slows the run down.
const maxBucketsPerAccount = 10000

// S3Probe counts buckets for the whole account. Bucket listing is a
// global operation, so the probe runs once per account.
type S3Probe struct {
	api func(ctx context.Context, acct engine.Account) (S3API, error)
}

func NewS3Probe(cfgs ConfigSource) *S3Probe {
	return &S3Probe{
		api: func(ctx context.Context, acct engine.Account) (S3API, error) {
			cfg, err := cfgs.Config(ctx, acct, HomeRegion)
			if err != nil {
				return nil, err
			}
			return s3.NewFromConfig(cfg), nil
		},
	}
}

func (p *S3Probe) Name() string      { return "s3-buckets" }
func (p *S3Probe) Service() string   { return ServiceS3 }
func (p *S3Probe) PerLocality() bool { return false }

func (p *S3Probe) Count(ctx context.Context, acct engine.Account, _ string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct)
	if err != nil {
		return nil, err
	}
	out, err := api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("listing buckets: %w", err)
	}

	n := len(out.Buckets)
	detail := ""
	if n > maxBucketsPerAccount {
		n = maxBucketsPerAccount
		detail = "capped"
	}
	if n == 0 {
		return nil, nil
	}
	return []engine.Result{{
		Category:    engine.CategoryDataBuckets,
		Count:       n,
		AccountID:   acct.ID,
		AccountName: acct.Name,
		Detail:      detail,
	}}, nil
}
