package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"

	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/pagewalk"
)

// RedshiftProbe counts warehouse clusters in a region.
type RedshiftProbe struct {
	api func(ctx context.Context, acct engine.Account, region string) (RedshiftAPI, error)
}

func NewRedshiftProbe(cfgs ConfigSource) *RedshiftProbe {
	return &RedshiftProbe{
		api: func(ctx context.Context, acct engine.Account, region string) (RedshiftAPI, error) {
			cfg, err := cfgs.Config(ctx, acct, region)
			if err != nil {
				return nil, err
			}
			return redshift.NewFromConfig(cfg), nil
		},
	}
}

func (p *RedshiftProbe) Name() string      { return "redshift-clusters" }
func (p *RedshiftProbe) Service() string   { return ServiceRedshift }
func (p *RedshiftProbe) PerLocality() bool { return true }

func (p *RedshiftProbe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	n, err := pagewalk.New(func(ctx context.Context, token string) ([]redshifttypes.Cluster, string, error) {
		out, err := api.DescribeClusters(ctx, &redshift.DescribeClustersInput{Marker: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.Clusters, aws.ToString(out.Marker), nil
	}).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("describing clusters: %w", err)
	}

	if n == 0 {
		return nil, nil
	}
	return []engine.Result{{
		Category:    engine.CategoryDataWarehouses,
		Count:       n,
		AccountID:   acct.ID,
		AccountName: acct.Name,
		Locality:    locality,
	}}, nil
}
