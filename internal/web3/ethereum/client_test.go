package ethereum

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	xerrors "IRIS-Agents/internal/errors"
)

func TestClientAgainstSimulatedChain(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	account := crypto.PubkeyToAddress(key.PublicKey)
	funds := big.NewInt(1_000_000_000_000_000_000)

	backend := simulated.NewBackend(types.GenesisAlloc{account: {Balance: funds}})
	t.Cleanup(func() { _ = backend.Close() })

	client := NewClientWithBackend(Config{Name: "simulated", Notes: "simulated backend"}, backend.Client())

	backend.Commit()
	snapshot, err := client.FetchChainSnapshot(ctx)
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if snapshot.ChainID == nil || snapshot.ChainID.Sign() <= 0 {
		t.Fatalf("unexpected chain id %v", snapshot.ChainID)
	}
	if snapshot.BlockNumber == 0 {
		t.Fatal("expected block number to advance after commit")
	}
	if snapshot.Chain != "simulated" || snapshot.Notes != "simulated backend" {
		t.Fatalf("unexpected snapshot metadata %+v", snapshot)
	}

	balance, err := client.BalanceOf(ctx, account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(funds) != 0 {
		t.Fatalf("expected balance %s, got %s", funds, balance)
	}

	nonce, err := client.NonceOf(ctx, account)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce != 0 {
		t.Fatalf("expected fresh account nonce 0, got %d", nonce)
	}

	client.Close()
	if _, err := client.BalanceOf(ctx, account); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected closed client error, got %v", err)
	}
}

func TestNewClientRequiresRPCURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(context.Background(), Config{Name: "empty"}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
