package config

import "testing"

func TestFirstNonEmpty(t *testing.T) {
	if v := firstNonEmpty("", "foo", "bar"); v != "foo" {
		t.Fatalf("expected 'foo', got %q", v)
	}
	if v := firstNonEmpty(); v != "" {
		t.Fatalf("expected empty, got %q", v)
	}
}

func TestEnvIntDefault(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "")
	if n := envInt("CONFIG_TEST_INT", 7); n != 7 {
		t.Fatalf("expected default 7, got %d", n)
	}
	t.Setenv("CONFIG_TEST_INT", "42")
	if n := envInt("CONFIG_TEST_INT", 7); n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
	t.Setenv("CONFIG_TEST_INT", "notanint")
	if n := envInt("CONFIG_TEST_INT", 7); n != 7 {
		t.Fatalf("expected fallback to default on parse error, got %d", n)
	}
}

func TestEnvBool(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "yes": true, "false": false, "": false}
	for in, want := range cases {
		t.Setenv("CONFIG_TEST_BOOL", in)
		if got := envBool("CONFIG_TEST_BOOL", false); got != want {
			t.Fatalf("envBool(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IndexerBatchSize != 500 {
		t.Fatalf("expected default batch size 500, got %d", cfg.IndexerBatchSize)
	}
	if cfg.Timeouts.ItemTimeout.Seconds() != 600 {
		t.Fatalf("expected default item timeout 600s, got %v", cfg.Timeouts.ItemTimeout)
	}
}
