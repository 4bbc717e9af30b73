package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/pagewalk"
)

// Instances in these states count as billable. Terminated and
// shutting-down instances do not.
var billableInstanceStates = []string{"pending", "running", "stopping", "stopped"}

// EC2Probe counts instances and derives container hosts, non-OS disks
// and sensor counts from the same listing.
type EC2Probe struct {
	api func(ctx context.Context, acct engine.Account, region string) (EC2API, error)
}

func NewEC2Probe(cfgs ConfigSource) *EC2Probe {
	return &EC2Probe{api: ec2Factory(cfgs)}
}

func ec2Factory(cfgs ConfigSource) func(context.Context, engine.Account, string) (EC2API, error) {
	return func(ctx context.Context, acct engine.Account, region string) (EC2API, error) {
		cfg, err := cfgs.Config(ctx, acct, region)
		if err != nil {
			return nil, err
		}
		return ec2.NewFromConfig(cfg), nil
	}
}

func (p *EC2Probe) Name() string      { return "ec2-instances" }
func (p *EC2Probe) Service() string   { return ServiceEC2 }
func (p *EC2Probe) PerLocality() bool { return true }

func (p *EC2Probe) Count(ctx context.Context, acct engine.Account, locality string) ([]engine.Result, error) {
	api, err := p.api(ctx, acct, locality)
	if err != nil {
		return nil, err
	}

	var instances, containerHosts, nonOSDisks, linuxSensors int

	walker := pagewalk.New(func(ctx context.Context, token string) ([]ec2types.Instance, string, error) {
		out, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			MaxResults: aws.Int32(500),
			NextToken:  optToken(token),
			Filters: []ec2types.Filter{{
				Name:   aws.String("instance-state-name"),
				Values: billableInstanceStates,
			}},
		})
		if err != nil {
			return nil, "", err
		}
		var items []ec2types.Instance
		for _, res := range out.Reservations {
			items = append(items, res.Instances...)
		}
		return items, aws.ToString(out.NextToken), nil
	})

	if err := walker.Each(ctx, func(inst ec2types.Instance) error {
		if hasTag(inst.Tags, "Vendor", "Databricks") {
			return nil
		}
		instances++
		if isEKSNode(inst.Tags) {
			containerHosts++
			return nil
		}
		nonOSDisks += nonRootDeviceCount(inst)
		if inst.Platform != ec2types.PlatformValuesWindows {
			linuxSensors++
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("describing instances: %w", err)
	}

	var results []engine.Result
	if instances > 0 {
		results = append(results, engine.Result{
			Category:    engine.CategoryVirtualMachines,
			Count:       instances,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
			Detail:      fmt.Sprintf("with %d non-OS disks", nonOSDisks),
		})
	}
	if nonOSDisks > 0 {
		results = append(results, engine.Result{
			Category:    engine.CategoryNonOSDisks,
			Count:       nonOSDisks,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
		})
	}
	if linuxSensors > 0 {
		results = append(results, engine.Result{
			Category:    engine.CategoryVMSensors,
			Count:       linuxSensors,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
		})
	}
	if containerHosts > 0 {
		results = append(results, engine.Result{
			Category:    engine.CategoryContainerHosts,
			Count:       containerHosts,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
		}, engine.Result{
			Category:    engine.CategoryKubernetesSensors,
			Count:       containerHosts,
			AccountID:   acct.ID,
			AccountName: acct.Name,
			Locality:    locality,
		})
	}
	return results, nil
}

func hasTag(tags []ec2types.Tag, key, value string) bool {
	for _, t := range tags {
		if aws.ToString(t.Key) == key && aws.ToString(t.Value) == value {
			return true
		}
	}
	return false
}

// isEKSNode recognizes instances that belong to an EKS node group by
// the tags EKS and kubernetes stamp on them.
func isEKSNode(tags []ec2types.Tag) bool {
	for _, t := range tags {
		key := aws.ToString(t.Key)
		switch {
		case key == "eks:cluster-name" || key == "aws:eks:cluster-name":
			return true
		case strings.HasPrefix(key, "kubernetes.io/cluster/"):
			return true
		}
	}
	return false
}

// nonRootDeviceCount counts attached block devices other than the root
// volume.
func nonRootDeviceCount(inst ec2types.Instance) int {
	root := aws.ToString(inst.RootDeviceName)
	n := 0
	for _, bdm := range inst.BlockDeviceMappings {
		if aws.ToString(bdm.DeviceName) != root {
			n++
		}
	}
	return n
}
