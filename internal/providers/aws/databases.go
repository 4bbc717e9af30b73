package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/pagewalk"
)

// RDSProbe counts managed database instances in a region.
type RDSProbe struct {
	api func(ctx context.Context, acct engine.Account, region string) (RDSAPI, error)
}

func NewRDSProbe(cfgs ConfigSource) *RDSProbe {
	return &RDSProbe{
		api: func(ctx context.Context, acct engine.Account, region string) (RDSAPI, error) {
			cfg, err := cfgs.Config(ctx, acct, region)
			if err != nil {
				return nil, err
			}
			return rds.NewFromConfig(cfg), nil
		},
	}
}

func (p *RDSProbe) Name() string      { return "rds-instances" }
func (p *RDSProbe) Service() string   { return ServiceRDS }
func (p *RDSProbe) PerLocality() bool { return true }

func (p *RDSProbe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	n, err := pagewalk.New(func(ctx context.Context, token string) ([]rdstypes.DBInstance, string, error) {
		out, err := api.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.DBInstances, aws.ToString(out.Marker), nil
	}).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("describing db instances: %w", err)
	}

	if n == 0 {
		return nil, nil
	}
	return []engine.Result{{
		Category:    engine.CategoryPaaSDatabases,
		Count:       n,
		AccountID:   acct.ID,
		AccountName: acct.Name,
		Locality:    locality,
		Detail:      "RDS",
	}}, nil
}

// DynamoDBProbe counts tables in a region.
type DynamoDBProbe struct {
	api func(ctx context.Context, acct engine.Account, region string) (DynamoDBAPI, error)
}

func NewDynamoDBProbe(cfgs ConfigSource) *DynamoDBProbe {
	return &DynamoDBProbe{
		api: func(ctx context.Context, acct engine.Account, region string) (DynamoDBAPI, error) {
			cfg, err := cfgs.Config(ctx, acct, region)
			if err != nil {
				return nil, err
			}
			return dynamodb.NewFromConfig(cfg), nil
		},
	}
}

func (p *DynamoDBProbe) Name() string      { return "dynamodb-tables" }
func (p *DynamoDBProbe) Service() string   { return ServiceDynamoDB }
func (p *DynamoDBProbe) PerLocality() bool { return true }

func (p *DynamoDBProbe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	n, err := pagewalk.New(func(ctx context.Context, token string) ([]string, string, error) {
		out, err := api.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.TableNames, aws.ToString(out.LastEvaluatedTableName), nil
	}).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	if n == 0 {
		return nil, nil
	}
	return []engine.Result{{
		Category:    engine.CategoryPaaSDatabases,
		Count:       n,
		AccountID:   acct.ID,
		AccountName: acct.Name,
		Locality:    locality,
		Detail:      "DynamoDB",
	}}, nil
}
