package httpapi

import "testing"

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(8 << 20)
	if maxBodyBytes != 8<<20 {
		t.Fatalf("expected 8MiB, got %d", maxBodyBytes)
	}
}

func TestSetCORSOptions_Copies(t *testing.T) {
	origins := []string{"http://a"}
	SetCORSOptions(true, origins, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	origins[0] = "http://b"
	if !corsEnabled || corsAllowedOrigins[0] != "http://a" {
		t.Fatalf("options not copied: %v %v", corsEnabled, corsAllowedOrigins)
	}
}
