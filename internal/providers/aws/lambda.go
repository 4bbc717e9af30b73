package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/pagewalk"
)

// LambdaProbe counts deployed functions in a region.
type LambdaProbe struct {
	api func(ctx context.Context, acct engine.Account, region string) (LambdaAPI, error)
}

func NewLambdaProbe(cfgs ConfigSource) *LambdaProbe {
	return &LambdaProbe{
		api: func(ctx context.Context, acct engine.Account, region string) (LambdaAPI, error) {
			cfg, err := cfgs.Config(ctx, acct, region)
			if err != nil {
				return nil, err
			}
			return lambda.NewFromConfig(cfg), nil
		},
	}
}

func (p *LambdaProbe) Name() string      { return "lambda-functions" }
func (p *LambdaProbe) Service() string   { return ServiceLambda }
func (p *LambdaProbe) PerLocality() bool { return true }

func (p *LambdaProbe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	n, err := pagewalk.New(func(ctx context.Context, token string) ([]lambdatypes.FunctionConfiguration, string, error) {
		out, err := api.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.Functions, aws.ToString(out.NextMarker), nil
	}).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}

	if n == 0 {
		return nil, nil
	}
	return []engine.Result{{
		Category:    engine.CategoryServerlessFunctions,
		Count:       n,
		AccountID:   acct.ID,
		AccountName: acct.Name,
		Locality:    locality,
	}}, nil
}
