package config

import "testing"

type fakeRemote struct {
	byLabel map[string]map[string]string
}

func (f fakeRemote) Lookup(key string, labels []string) (string, bool, error) {
	for _, label := range labels {
		if m, ok := f.byLabel[label]; ok {
			if v, ok := m[key]; ok {
				return v, true, nil
			}
		}
	}
	return "", false, nil
}

func TestEnvResolverPrefersEnv(t *testing.T) {
	t.Setenv("CONFIG_RESOLVER_TEST", "from-env")
	r := EnvResolver{AllowEnvOverride: true, Remote: fakeRemote{byLabel: map[string]map[string]string{
		"gpt-rag-ingestion": {"CONFIG_RESOLVER_TEST": "from-remote"},
	}}}
	v, err := r.GetString("CONFIG_RESOLVER_TEST", "fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "from-env" {
		t.Fatalf("expected env to win, got %q", v)
	}
}

func TestEnvResolverFallsBackToRemoteLabelPrecedence(t *testing.T) {
	r := EnvResolver{AllowEnvOverride: true, Remote: fakeRemote{byLabel: map[string]map[string]string{
		"gpt-rag":           {"K": "from-shared"},
		"gpt-rag-ingestion": {"K": "from-app"},
	}}}
	v, err := r.GetString("K", "fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "from-app" {
		t.Fatalf("expected app-labeled value to win over shared, got %q", v)
	}
}

func TestEnvResolverDefault(t *testing.T) {
	r := EnvResolver{AllowEnvOverride: true}
	v, err := r.GetString("CONFIG_RESOLVER_TEST_MISSING", "fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "fallback" {
		t.Fatalf("expected fallback, got %q", v)
	}
}

func TestEnvResolverGetIntParseError(t *testing.T) {
	r := EnvResolver{Remote: fakeRemote{byLabel: map[string]map[string]string{
		"": {"BAD_INT": "not-a-number"},
	}}}
	if _, err := r.GetInt("BAD_INT", 5); err == nil {
		t.Fatalf("expected parse error")
	}
}
