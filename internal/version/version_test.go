package version

import (
	"testing"

	"github.com/google/uuid"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	// Test that fields are populated (even if "unknown")
	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.GitCommit == "" {
		t.Error("GitCommit should not be empty")
	}
	if info.BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
	if info.Channel != Channel(info.Version) {
		t.Errorf("Channel = %q, want %q", info.Channel, Channel(info.Version))
	}
	if _, err := uuid.Parse(info.InstanceID); err != nil {
		t.Errorf("InstanceID should be a UUID, got %q", info.InstanceID)
	}
	if info.Hostname == "" {
		t.Error("Hostname should not be empty")
	}

	// Test caching - subsequent calls should return same instance ID
	info2 := GetInfo()
	if info.InstanceID != info2.InstanceID {
		t.Errorf("InstanceID should be cached, got %s then %s", info.InstanceID, info2.InstanceID)
	}
}

func TestChannel(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"1.2.3", ChannelStable},
		{"v1.2.3", ChannelStable},
		{"v2.0.0-rc.1", ChannelPrerelease},
		{"1.0.0-beta", ChannelPrerelease},
		{"v1.0.0-dirty", ChannelDev},
		{"a1b2c3d", ChannelDev},
		{"unknown", ChannelDev},
		{"", ChannelDev},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := Channel(tt.version); got != tt.want {
				t.Errorf("Channel(%q) = %q, want %q", tt.version, got, tt.want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{
			name: "full version info",
			info: Info{
				Version:   "1.2.3",
				GitCommit: "abc1234",
				BuildDate: "2026-02-21T10:00:00Z",
			},
			expected: "throttle version 1.2.3 (commit: abc1234, built: 2026-02-21T10:00:00Z)",
		},
		{
			name: "unknown values",
			info: Info{
				Version:   "unknown",
				GitCommit: "unknown",
				BuildDate: "unknown",
			},
			expected: "throttle version unknown (commit: unknown, built: unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.info.String()
			if result != tt.expected {
				t.Errorf("String() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestGetHostname(t *testing.T) {
	if getHostname() == "" {
		t.Error("getHostname() should return non-empty string")
	}
}
