package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("VENDORR_INSTANCE_ID", "edge-7")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "edge-7" {
		t.Fatalf("expected edge-7, got %s", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("VENDORR_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected web.1, got %s", got)
	}
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("VENDORR_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if GetID() == "" {
		t.Fatalf("expected a fallback id")
	}
}
