package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"IRIS-Agents/internal/config"
	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/web3"
)

func writeChains(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chains.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write chains: %v", err)
	}
	return path
}

func TestNewRegistryFromDefinitions(t *testing.T) {
	path := writeChains(t, `chains:
  sepolia:
    rpc_url: http://127.0.0.1:1
    description: test network
  mainnet:
    type: evm
    rpc_url: http://127.0.0.1:2
`)

	registry, err := NewRegistry(context.Background(), config.Web3Config{ChainConfig: path})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	defer registry.Close()

	if got := registry.Chains(); len(got) != 2 || got[0] != "mainnet" || got[1] != "sepolia" {
		t.Fatalf("unexpected chains %v", got)
	}
	if registry.DefaultChain() != "mainnet" {
		t.Fatalf("expected first chain by name as default, got %q", registry.DefaultChain())
	}
	if _, ok := registry.Client("sepolia"); !ok {
		t.Fatal("expected sepolia client")
	}
	if _, ok := registry.Client(""); !ok {
		t.Fatal("empty name should resolve to the default chain")
	}
}

func TestNewRegistryFallsBackToRPCURL(t *testing.T) {
	registry, err := NewRegistry(context.Background(), config.Web3Config{RPCURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	defer registry.Close()

	if registry.DefaultChain() != "default" {
		t.Fatalf("unexpected default chain %q", registry.DefaultChain())
	}
	if _, err := registry.DefaultClient(); err != nil {
		t.Fatalf("default client: %v", err)
	}
}

func TestNewRegistryRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	if _, err := NewRegistry(ctx, config.Web3Config{}); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected initialization failure, got %v", err)
	}

	solana := writeChains(t, "chains:\n  sol:\n    type: solana\n    rpc_url: http://127.0.0.1:1\n")
	if _, err := NewRegistry(ctx, config.Web3Config{ChainConfig: solana}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected unsupported type error, got %v", err)
	}

	missing := writeChains(t, "chains:\n  local:\n    description: no endpoint\n")
	if _, err := NewRegistry(ctx, config.Web3Config{ChainConfig: missing}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected missing rpc_url error, got %v", err)
	}

	_, err := NewRegistryWithClients("unknown", map[string]web3.Client{"local": nil})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected unknown default chain error, got %v", err)
	}
}
