package aws

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/pagewalk"
)

// EKSFargateProbe counts Fargate profiles across every EKS cluster in
// a region. Profiles stand in for the serverless capacity attached to
// a cluster since individual Fargate pods are not listable from EKS.
type EKSFargateProbe struct {
	api func(ctx context.Context, acct engine.Account, region string) (EKSAPI, error)
}

func NewEKSFargateProbe(cfgs ConfigSource) *EKSFargateProbe {
	return &EKSFargateProbe{
		api: func(ctx context.Context, acct engine.Account, region string) (EKSAPI, error) {
			cfg, err := cfgs.Config(ctx, acct, region)
			if err != nil {
				return nil, err
			}
			return eks.NewFromConfig(cfg), nil
		},
	}
}

func (p *EKSFargateProbe) Name() string      { return "eks-fargate-profiles" }
func (p *EKSFargateProbe) Service() string   { return ServiceEKS }
func (p *EKSFargateProbe) PerLocality() bool { return true }

func (p *EKSFargateProbe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	clusters := pagewalk.New(func(ctx context.Context, token string) ([]string, string, error) {
		out, err := api.ListClusters(ctx, &eks.ListClustersInput{NextToken: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.Clusters, aws.ToString(out.NextToken), nil
	})

	var clusterCount, profileCount int
	if err := clusters.Each(ctx, func(cluster string) error {
		clusterCount++
		profiles := pagewalk.New(func(ctx context.Context, token string) ([]string, string, error) {
			out, err := api.ListFargateProfiles(ctx, &eks.ListFargateProfilesInput{
				ClusterName: aws.String(cluster),
				NextToken:   optToken(token),
			})
			if err != nil {
				return nil, "", err
			}
			return out.FargateProfileNames, aws.ToString(out.NextToken), nil
		})
		n, err := profiles.Count(ctx)
		if err != nil {
			return fmt.Errorf("cluster %s: %w", cluster, err)
		}
		profileCount += n
		return nil
	}); err != nil {
		return nil, fmt.Errorf("listing fargate profiles: %w", err)
	}

	if profileCount == 0 {
		return nil, nil
	}
	return []engine.Result{
		{
			Category:    engine.CategoryServerlessContainers,
			Count:       profileCount,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
			Detail:      fmt.Sprintf("EKS Fargate profiles across %d clusters", clusterCount),
		},
		{
			Category:    engine.CategoryContainerSensors,
			Count:       profileCount,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
		},
	}, nil
}

// ECSFargateProbe counts tasks currently running on Fargate capacity,
// read from the statistics block of DescribeClusters.
type ECSFargateProbe struct {
	api func(ctx context.Context, acct engine.Account, region string) (ECSAPI, error)
}

func NewECSFargateProbe(cfgs ConfigSource) *ECSFargateProbe {
	return &ECSFargateProbe{
		api: func(ctx context.Context, acct engine.Account, region string) (ECSAPI, error) {
			cfg, err := cfgs.Config(ctx, acct, region)
			if err != nil {
				return nil, err
			}
			return ecs.NewFromConfig(cfg), nil
		},
	}
}

func (p *ECSFargateProbe) Name() string      { return "ecs-fargate-tasks" }
func (p *ECSFargateProbe) Service() string   { return ServiceECS }
func (p *ECSFargateProbe) PerLocality() bool { return true }

// DescribeClusters accepts at most 100 cluster ARNs per call.
const ecsDescribeBatch = 100

func (p *ECSFargateProbe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	arns, err := pagewalk.New(func(ctx context.Context, token string) ([]string, string, error) {
		out, err := api.ListClusters(ctx, &ecs.ListClustersInput{NextToken: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.ClusterArns, aws.ToString(out.NextToken), nil
	}).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ecs clusters: %w", err)
	}

	var tasks int
	for start := 0; start < len(arns); start += ecsDescribeBatch {
		end := min(start+ecsDescribeBatch, len(arns))
		out, err := api.DescribeClusters(ctx, &ecs.DescribeClustersInput{
			Clusters: arns[start:end],
			Include:  []ecstypes.ClusterField{ecstypes.ClusterFieldStatistics},
		})
		if err != nil {
			return nil, fmt.Errorf("describing ecs clusters: %w", err)
		}
		for _, cluster := range out.Clusters {
			for _, stat := range cluster.Statistics {
				if aws.ToString(stat.Name) != "runningFargateTasksCount" {
					continue
				}
				n, err := strconv.Atoi(aws.ToString(stat.Value))
				if err != nil {
					return nil, fmt.Errorf("cluster %s: bad fargate task count %q", aws.ToString(cluster.ClusterName), aws.ToString(stat.Value))
				}
				tasks += n
			}
		}
	}

	if tasks == 0 {
		return nil, nil
	}
	return []engine.Result{
		{
			Category:    engine.CategoryServerlessContainers,
			Count:       tasks,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
			Detail:      "ECS Fargate tasks",
		},
		{
			Category:    engine.CategoryContainerSensors,
			Count:       tasks,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
		},
	}, nil
}
