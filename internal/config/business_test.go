package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultBusinessConfig(t *testing.T) {
	b := Default()

	require.Equal(t, "Vadodara", b.City)
	require.Equal(t, 22.40, b.ServiceArea.North)
	require.Equal(t, 73.08, b.ServiceArea.West)
	require.Equal(t, "40", b.Pricing.DeliveryFee.String())
	require.Equal(t, "300", b.Pricing.FreeDeliveryThreshold.String())
	require.Equal(t, "0.05", b.Pricing.TaxRate.String())
	require.Equal(t, 5*time.Second, b.Tracking.PushInterval)
	require.Equal(t, 4.5, b.Tracking.DefaultDriverRating)
	require.Len(t, b.ETA.PeakWindows, 2)
	require.Equal(t, 19, b.ETA.PeakWindows[1][0])
	require.Equal(t, 22.3072, b.DefaultRestaurantLocation.Coordinates().Latitude)
}

func TestLoadFromFile(t *testing.T) {
	data := strings.Replace(string(defaultBusiness), "city: Vadodara", "city: Surat", 1)
	path := filepath.Join(t.TempDir(), "business.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Surat", loaded.City)

	embedded, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "Vadodara", embedded.City)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]byte(`
city: ""
service_area: {north: 1, south: 2, east: 3, west: 4}
phone_pattern: "["
eta:
  peak_multiplier: 0
tracking:
  push_interval: 0s
`))
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "city is required")
	require.Contains(t, msg, "service_area")
	require.Contains(t, msg, "phone_pattern")
	require.Contains(t, msg, "push_interval")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
