package translation

import (
	"context"
	"testing"

	"horse.fit/polyglot/internal/config"
)

type namedProvider struct{ name string }

func (p namedProvider) Name() string { return p.name }

func (p namedProvider) Translate(_ context.Context, req TranslateRequest) (*TranslateResponse, error) {
	return &TranslateResponse{Text: req.Text, ProviderName: p.name}, nil
}

func TestRegistryResolvesDefaultAndNamedProviders(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(" Upper ")
	if err := registry.Register(namedProvider{name: "UPPER"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(namedProvider{name: "copy"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	provider, err := registry.Provider("")
	if err != nil {
		t.Fatalf("Provider(\"\") error = %v", err)
	}
	if provider.Name() != "UPPER" {
		t.Fatalf("expected default provider, got %q", provider.Name())
	}
	if _, err := registry.Provider("missing"); err == nil {
		t.Fatalf("expected error for unregistered provider")
	}
	if got := registry.ProviderNames(); len(got) != 2 || got[0] != "copy" || got[1] != "upper" {
		t.Fatalf("unexpected provider names: %v", got)
	}
}

func TestNewRegistryFromConfigFallsBackToLocal(t *testing.T) {
	t.Parallel()

	registry := NewRegistryFromConfig(config.Config{TranslationProvider: "deepl"})
	if registry.DefaultProvider() != DefaultProviderName {
		t.Fatalf("expected default provider %q, got %q", DefaultProviderName, registry.DefaultProvider())
	}
	provider, err := registry.Provider("")
	if err != nil {
		t.Fatalf("Provider() error = %v", err)
	}
	if _, ok := provider.(*LocalProvider); !ok {
		t.Fatalf("expected *LocalProvider, got %T", provider)
	}
}
