package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Output Tests
// =============================================================================

func TestParseOutputs(t *testing.T) {
	raw := []byte(`{
  "instance_ip": {"sensitive": false, "type": "string", "value": "203.0.113.7"},
  "app_port": {"sensitive": false, "type": "number", "value": 5000},
  "database_url": {"sensitive": true, "type": "string", "value": "postgres://app:pw@db:5432/app"},
  "tags": {"sensitive": false, "type": ["list", "string"], "value": ["a", "b"]}
}`)

	got, err := ParseOutputs(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"instance_ip":  "203.0.113.7",
		"app_port":     "5000",
		"database_url": "(sensitive)",
		"tags":         `["a", "b"]`,
	}, got)

	_, err = ParseOutputs([]byte("not json"))
	assert.Error(t, err)
}

func TestAppURL(t *testing.T) {
	tests := []struct {
		name    string
		outputs map[string]string
		want    string
	}{
		{"vm ip", map[string]string{"instance_ip": "203.0.113.7"}, "http://203.0.113.7"},
		{"app url wins", map[string]string{"instance_ip": "203.0.113.7", "app_url": "http://203.0.113.7:5000"}, "http://203.0.113.7:5000"},
		{"service url", map[string]string{"service_url": "https://abc.awsapprunner.com"}, "https://abc.awsapprunner.com"},
		{"bare service host", map[string]string{"service_url": "abc.awsapprunner.com"}, "https://abc.awsapprunner.com"},
		{"cdn", map[string]string{"cdn_domain": "d111.cloudfront.net", "bucket_name": "assets"}, "https://d111.cloudfront.net"},
		{"public dns", map[string]string{"public_dns": "ec2-1.compute.amazonaws.com"}, "http://ec2-1.compute.amazonaws.com"},
		{"masked skipped", map[string]string{"app_url": SensitiveMask, "public_ip": "198.51.100.1"}, "http://198.51.100.1"},
		{"none", map[string]string{"bucket_name": "assets"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AppURL(tt.outputs))
		})
	}
}
