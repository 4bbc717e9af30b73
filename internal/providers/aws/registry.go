package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/pagewalk"
)

// Repositories with more billable images than this are counted as
// exactly this many; walking further is pointless for sizing.
const maxImagesPerRepository = 10000

// ECRProbe counts container images per repository. Each tag on an
// image counts separately up to maxTags; an untagged image counts
// once.
type ECRProbe struct {
	api     func(ctx context.Context, acct engine.Account, region string) (ECRAPI, error)
	maxTags int
}

func NewECRProbe(cfgs ConfigSource, maxTags int) *ECRProbe {
	return &ECRProbe{
		api: func(ctx context.Context, acct engine.Account, region string) (ECRAPI, error) {
			cfg, err := cfgs.Config(ctx, acct, region)
			if err != nil {
				return nil, err
			}
			return ecr.NewFromConfig(cfg), nil
		},
		maxTags: maxTags,
	}
}

func (p *ECRProbe) Name() string      { return "ecr-images" }
func (p *ECRProbe) Service() string   { return ServiceECR }
func (p *ECRProbe) PerLocality() bool { return true }

func (p *ECRProbe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	repos := pagewalk.New(func(ctx context.Context, token string) ([]ecrtypes.Repository, string, error) {
		out, err := api.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{NextToken: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.Repositories, aws.ToString(out.NextToken), nil
	})

	var images, repoCount int
	if err := repos.Each(ctx, func(repo ecrtypes.Repository) error {
		repoCount++
		n, err := p.countRepository(ctx, api, aws.ToString(repo.RepositoryName))
		if err != nil {
			return err
		}
		images += n
		return nil
	}); err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	if images == 0 {
		return nil, nil
	}
	return []engine.Result{{
		Category:    engine.CategoryRegistryImages,
		Count:       images,
		AccountID:   acct.ID,
		AccountName: acct.Name,
		Locality:    locality,
		Detail:      fmt.Sprintf("across %d repositories", repoCount),
	}}, nil
}

func (p *ECRProbe) countRepository(ctx context.Context, api ECRAPI, name string) (int, error) {
	walker := pagewalk.New(func(ctx context.Context, token string) ([]ecrtypes.ImageDetail, string, error) {
		out, err := api.DescribeImages(ctx, &ecr.DescribeImagesInput{
			RepositoryName: aws.String(name),
			NextToken:      optToken(token),
		})
		if err != nil {
			return nil, "", err
		}
		return out.ImageDetails, aws.ToString(out.NextToken), nil
	})

	total := 0
	err := walker.Each(ctx, func(img ecrtypes.ImageDetail) error {
		total += billableImageCount(img, p.maxTags)
		if total >= maxImagesPerRepository {
			total = maxImagesPerRepository
			return pagewalk.ErrStop
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("repository %s: %w", name, err)
	}
	return total, nil
}

func billableImageCount(img ecrtypes.ImageDetail, maxTags int) int {
	if len(img.ImageTags) == 0 {
		return 1
	}
	return min(maxTags, len(img.ImageTags))
}
