package instance

import "testing"

func TestIDPrefersExplicitOverride(t *testing.T) {
	t.Setenv("STOREFRONT_INSTANCE_ID", "api-7")
	t.Setenv("DYNO", "web.1")
	if got := ID(); got != "api-7" {
		t.Fatalf("expected api-7, got %q", got)
	}
}

func TestIDFallsBackToLocal(t *testing.T) {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO", "K_REVISION", "HOSTNAME"} {
		t.Setenv(key, "")
	}
	if got := ID(); got != "local" {
		t.Fatalf("expected local, got %q", got)
	}
}
