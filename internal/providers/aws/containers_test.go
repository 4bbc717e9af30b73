package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennec-cloud/tally/internal/engine"
)

type mockEKS struct {
	profiles map[string][]string
}

func (m *mockEKS) ListClusters(_ context.Context, in *eks.ListClustersInput, _ ...func(*eks.Options)) (*eks.ListClustersOutput, error) {
	clusters := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		clusters = append(clusters, name)
	}
	return &eks.ListClustersOutput{Clusters: clusters}, nil
}

func (m *mockEKS) ListFargateProfiles(_ context.Context, in *eks.ListFargateProfilesInput, _ ...func(*eks.Options)) (*eks.ListFargateProfilesOutput, error) {
	return &eks.ListFargateProfilesOutput{
		FargateProfileNames: m.profiles[aws.ToString(in.ClusterName)],
	}, nil
}

func TestEKSFargateProbeSumsProfilesAcrossClusters(t *testing.T) {
	probe := &EKSFargateProbe{api: func(context.Context, engine.Account, string) (EKSAPI, error) {
		return &mockEKS{profiles: map[string][]string{
			"prod":    {"default", "batch"},
			"staging": {"default"},
			"empty":   nil,
		}}, nil
	}}

	results, err := probe.Count(context.Background(), engine.Account{ID: "111"}, "us-east-1")
	require.NoError(t, err)

	byCat := resultsByCategory(results)
	assert.Equal(t, 3, byCat[engine.CategoryServerlessContainers].Count)
	assert.Equal(t, 3, byCat[engine.CategoryContainerSensors].Count)
}

type mockECS struct {
	arns  []string
	stats map[string]string
}

func (m *mockECS) ListClusters(_ context.Context, in *ecs.ListClustersInput, _ ...func(*ecs.Options)) (*ecs.ListClustersOutput, error) {
	return &ecs.ListClustersOutput{ClusterArns: m.arns}, nil
}

func (m *mockECS) DescribeClusters(_ context.Context, in *ecs.DescribeClustersInput, _ ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error) {
	clusters := make([]ecstypes.Cluster, 0, len(in.Clusters))
	for _, arn := range in.Clusters {
		clusters = append(clusters, ecstypes.Cluster{
			ClusterName: aws.String(arn),
			Statistics: []ecstypes.KeyValuePair{
				{Name: aws.String("runningEC2TasksCount"), Value: aws.String("9")},
				{Name: aws.String("runningFargateTasksCount"), Value: aws.String(m.stats[arn])},
			},
		})
	}
	return &ecs.DescribeClustersOutput{Clusters: clusters}, nil
}

func TestECSFargateProbeSumsRunningTasks(t *testing.T) {
	probe := &ECSFargateProbe{api: func(context.Context, engine.Account, string) (ECSAPI, error) {
		return &mockECS{
			arns:  []string{"a", "b"},
			stats: map[string]string{"a": "4", "b": "2"},
		}, nil
	}}

	results, err := probe.Count(context.Background(), engine.Account{ID: "111"}, "eu-west-1")
	require.NoError(t, err)

	byCat := resultsByCategory(results)
	assert.Equal(t, 6, byCat[engine.CategoryServerlessContainers].Count, "only fargate statistics count")
	assert.Equal(t, 6, byCat[engine.CategoryContainerSensors].Count)
}

func TestECSFargateProbeNoTasksNoResults(t *testing.T) {
	probe := &ECSFargateProbe{api: func(context.Context, engine.Account, string) (ECSAPI, error) {
		return &mockECS{arns: []string{"a"}, stats: map[string]string{"a": "0"}}, nil
	}}

	results, err := probe.Count(context.Background(), engine.Account{ID: "111"}, "eu-west-1")
	require.NoError(t, err)
	assert.Empty(t, results)
}
