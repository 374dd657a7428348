package wallet

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/web3/ethereum"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "anonymous", in: "   ", want: ""},
		{name: "lowercase", in: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", want: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{name: "checksummed", in: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", want: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{name: "no prefix", in: " fB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", want: "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"},
		{name: "opaque id", in: " alice@example ", want: "alice@example"},
		{name: "short hex kept", in: "0x1234", want: "0x1234"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	addr, err := ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr.Hex() != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("unexpected address %s", addr.Hex())
	}
	for _, raw := range []string{"", "alice", "0x1234"} {
		if _, err := ParseAddress(raw); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
			t.Fatalf("%q: expected invalid argument, got %v", raw, err)
		}
	}
}

func TestPanelSnapshot(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	account := crypto.PubkeyToAddress(key.PublicKey)
	funds := big.NewInt(42_000_000_000)

	backend := simulated.NewBackend(types.GenesisAlloc{account: {Balance: funds}})
	t.Cleanup(func() { _ = backend.Close() })

	panel := NewPanel(ethereum.NewClientWithBackend(ethereum.Config{Name: "simulated"}, backend.Client()))

	snapshot, err := panel.Snapshot(ctx, account.Hex())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Address != account.Hex() {
		t.Fatalf("unexpected address %s", snapshot.Address)
	}
	if snapshot.Balance.Cmp(funds) != 0 {
		t.Fatalf("expected balance %s, got %s", funds, snapshot.Balance)
	}
	if snapshot.ChainID == nil || snapshot.Chain != "simulated" {
		t.Fatalf("unexpected chain info %+v", snapshot)
	}

	if _, err := panel.Snapshot(ctx, ""); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected error for disconnected wallet, got %v", err)
	}
	if _, err := NewPanel(nil).Snapshot(ctx, account.Hex()); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected initialization failure, got %v", err)
	}
}
