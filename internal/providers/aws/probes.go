// Package aws provides the probes, account sources and locality
// discovery for counting billable resources across AWS accounts.
package aws

import (
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/fennec-cloud/tally/internal/config"
	"github.com/fennec-cloud/tally/internal/engine"
)

// Probes builds the probe set for a run. Image counting is opt-in and
// adds the ECR probe; everything else always runs, subject to the
// per-account service gate in the engine.
func Probes(cfg *config.Config, cfgs ConfigSource) []engine.Probe {
	probes := []engine.Probe{
		NewEC2Probe(cfgs),
		NewEKSFargateProbe(cfgs),
		NewECSFargateProbe(cfgs),
		NewLambdaProbe(cfgs),
		NewS3Probe(cfgs),
		NewRDSProbe(cfgs),
		NewDynamoDBProbe(cfgs),
		NewRedshiftProbe(cfgs),
	}
	if cfg.Images {
		probes = append(probes, NewECRProbe(cfgs, cfg.MaxImageTags))
	}
	return probes
}

// optToken converts the walker's empty-string sentinel into the SDK's
// nil-pointer one.
func optToken(token string) *string {
	if token == "" {
		return nil
	}
	return aws.String(token)
}
