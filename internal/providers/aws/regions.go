package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/fennec-cloud/tally/internal/engine"
)

// RegionLister discovers the regions enabled for an account. Only
// opted-in regions are returned, so disabled regions never produce
// probe tasks or auth errors.
type RegionLister struct {
	api func(ctx context.Context, acct engine.Account) (EC2API, error)
}

func NewRegionLister(cfgs ConfigSource) *RegionLister {
	return &RegionLister{
		api: func(ctx context.Context, acct engine.Account) (EC2API, error) {
			cfg, err := cfgs.Config(ctx, acct, HomeRegion)
			if err != nil {
				return nil, err
			}
			return ec2.NewFromConfig(cfg), nil
		},
	}
}

func (l *RegionLister) Localities(ctx context.Context, acct engine.Account) ([]string, error) {
	api, err := l.api(ctx, acct)
	if err != nil {
		return nil, err
	}
	out, err := api.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describing regions: %w", err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		regions = append(regions, aws.ToString(r.RegionName))
	}
	sort.Strings(regions)
	return regions, nil
}
