package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Resolver is the Config Resolver contract (C12): a read-only key→value
// lookup with label precedence and environment-variable fallback.
// Resolution order: environment (when permitted) → remote store by label
// precedence → provided default. There is no required mode: an absent key
// yields the default, not an error.
type Resolver interface {
	GetString(key, def string) (string, error)
	GetInt(key string, def int) (int, error)
	GetBool(key string, def bool) (bool, error)
}

// Labels are consulted in this precedence order when a remote store is
// configured: the app-specific label first, then the shared label, then
// unlabeled entries.
var Labels = []string{"gpt-rag-ingestion", "gpt-rag", ""}

// RemoteStore is implemented by a real remote config store (e.g. App
// Configuration, Consul, etcd). Not provided here — out of scope per the
// purpose statement, specified at the contract level only.
type RemoteStore interface {
	// Lookup returns the value for key under the first matching label, or
	// ok=false if no label has it.
	Lookup(key string, labels []string) (value string, ok bool, err error)
}

// EnvResolver resolves from the process environment, then a remote store,
// then the caller-supplied default. AllowEnvOverride mirrors the "flag
// permitting environment-variable override" in §4.12; when false, lookups
// skip straight to the remote store.
type EnvResolver struct {
	AllowEnvOverride bool
	Remote           RemoteStore
}

func (r EnvResolver) resolve(key string) (string, bool, error) {
	if r.AllowEnvOverride {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true, nil
		}
	}
	if r.Remote != nil {
		v, ok, err := r.Remote.Lookup(key, Labels)
		if err != nil {
			return "", false, fmt.Errorf("resolve %q: %w", key, err)
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

func (r EnvResolver) GetString(key, def string) (string, error) {
	v, ok, err := r.resolve(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (r EnvResolver) GetInt(key string, def int) (int, error) {
	v, ok, err := r.resolve(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("resolve %q as int: %w", key, err)
	}
	return n, nil
}

func (r EnvResolver) GetBool(key string, def bool) (bool, error) {
	v, ok, err := r.resolve(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes"), nil
}

var _ Resolver = EnvResolver{}
