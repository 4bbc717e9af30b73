package aws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennec-cloud/tally/internal/config"
)

func TestProbesGateImageCounting(t *testing.T) {
	cfg := config.Default()
	probes := Probes(cfg, ProfileConfigs{})
	for _, p := range probes {
		assert.NotEqual(t, ServiceECR, p.Service(), "image counting is opt-in")
	}

	cfg.Images = true
	probes = Probes(cfg, ProfileConfigs{})
	found := false
	for _, p := range probes {
		if p.Service() == ServiceECR {
			found = true
		}
	}
	assert.True(t, found)
}

func TestProbesDeclareKnownServices(t *testing.T) {
	cfg := config.Default()
	cfg.Images = true

	known := make(map[string]bool)
	for _, svc := range AllServices() {
		known[svc] = true
	}
	names := make(map[string]bool)
	for _, p := range Probes(cfg, ProfileConfigs{}) {
		require.True(t, known[p.Service()], "probe %s gates on unknown service %s", p.Name(), p.Service())
		require.False(t, names[p.Name()], "duplicate probe name %s", p.Name())
		names[p.Name()] = true
	}
}

func TestOptToken(t *testing.T) {
	assert.Nil(t, optToken(""))
	require.NotNil(t, optToken("abc"))
	assert.Equal(t, "abc", *optToken("abc"))
}
