package vpn

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestScoreUnroutableAddresses(t *testing.T) {
	detector := NewDetector("", "", zap.NewNop())

	cases := []struct {
		ip   string
		want float64
	}{
		{"10.0.0.5", 100},
		{"172.16.4.1", 100},
		{"192.168.1.10", 100},
		{"127.0.0.1", 100},
		{"0.0.0.0", 100},
		{"169.254.1.1", 100},
		{"203.0.113.7", 0},
		{"not-an-ip", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := detector.Score(context.Background(), tc.ip); got != tc.want {
			t.Errorf("Score(%q) = %v, want %v", tc.ip, got, tc.want)
		}
	}
}

func TestCountryWithoutDatabase(t *testing.T) {
	detector := NewDetector("", "", zap.NewNop())
	if got := detector.Country("203.0.113.7"); got != "" {
		t.Fatalf("expected empty country without database, got %q", got)
	}
}

func TestNewDetectorMissingFiles(t *testing.T) {
	detector := NewDetector("/nonexistent/country.mmdb", "/nonexistent/asn.mmdb", zap.NewNop())
	defer detector.Close()

	if got := detector.Score(context.Background(), "203.0.113.7"); got != 0 {
		t.Fatalf("expected score 0 with unavailable databases, got %v", got)
	}
}
