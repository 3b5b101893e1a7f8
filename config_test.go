package main

import "testing"

func TestConfigRenewEvery(t *testing.T) {
	cases := []struct {
		duration int
		want     int
	}{
		{60, 20},
		{2, 1}, // floored at 1, per main.py's max(1, LEASE_DURATION // 3)
		{0, 1},
		{9, 3},
	}

	for _, tc := range cases {
		c := Config{LeaseDuration: tc.duration}
		if got := c.RenewEvery(); got != tc.want {
			t.Errorf("RenewEvery() with duration=%d = %d, want %d", tc.duration, got, tc.want)
		}
	}
}

func TestGetEnvIntOrDefaultFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_NOT_AN_INT", "banana")
	if got := getEnvIntOrDefault("TEST_NOT_AN_INT", 42); got != 42 {
		t.Errorf("expected fallback to default on unparseable env value, got %d", got)
	}
}

func TestGetEnvIntOrDefaultUsesSetValue(t *testing.T) {
	t.Setenv("TEST_AN_INT", "7")
	if got := getEnvIntOrDefault("TEST_AN_INT", 42); got != 7 {
		t.Errorf("expected env value 7, got %d", got)
	}
}

func TestPodNamespaceEnvPrecedence(t *testing.T) {
	t.Setenv("WATCH_NAMESPACE", "watched")
	t.Setenv("POD_NAMESPACE", "podns")
	if got := podNamespace(); got != "watched" {
		t.Errorf("WATCH_NAMESPACE should win over POD_NAMESPACE, got %q", got)
	}
}
