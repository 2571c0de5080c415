// Command registry-tool performs the operator-side contract writes the
// provider runtime never issues itself: slashing a misbehaving agent,
// recording client feedback, updating an agent's metadata URI, and
// inspecting the registries.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bitagent/bitagent-go/internal/chain"
)

func usage() {
	fmt.Println("registry-tool commands:")
	fmt.Println("  list       --rpc <url> --identity <addr>")
	fmt.Println("  set-uri    --rpc <url> --identity <addr> --privkey <hex> --chain-id <id> --agent-id <id> --uri <url>")
	fmt.Println("  slash      --rpc <url> --vault <addr> --privkey <hex> --chain-id <id> --agent-id <id> --amount <wei> --reason <text>")
	fmt.Println("  feedback   --rpc <url> --reputation <addr> --privkey <hex> --chain-id <id> --agent-id <id> --score <0-100>")
	fmt.Println("  stake-info --rpc <url> --vault <addr> --agent-id <id>")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		usage()
		return fmt.Errorf("missing command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		rpc := fs.String("rpc", os.Getenv("CHAIN_RPC_URL"), "RPC URL")
		idAddr := fs.String("identity", "", "IdentityRegistry address")
		fs.Parse(args[1:])
		if *rpc == "" || *idAddr == "" {
			return fmt.Errorf("list: missing --rpc or --identity")
		}
		client, err := chain.Connect(*rpc)
		if err != nil {
			return err
		}
		identity, err := chain.NewIdentity(common.HexToAddress(*idAddr), client)
		if err != nil {
			return err
		}
		agents, err := identity.EnumerateAgents(ctx)
		if err != nil {
			return err
		}
		for _, agent := range agents {
			fmt.Printf("agent %s  owner %s  uri %s\n", agent.AgentID, agent.Owner.Hex(), agent.AgentURI)
		}
		fmt.Printf("%d agents registered\n", len(agents))
		return nil

	case "set-uri":
		fs := flag.NewFlagSet("set-uri", flag.ExitOnError)
		rpc := fs.String("rpc", os.Getenv("CHAIN_RPC_URL"), "RPC URL")
		idAddr := fs.String("identity", "", "IdentityRegistry address")
		privkey := fs.String("privkey", os.Getenv("AGENT_PRIVATE_KEY"), "signing key (hex)")
		chainID := fs.Int64("chain-id", 48816, "chain id")
		agentID := fs.Int64("agent-id", 0, "agent id")
		uri := fs.String("uri", "", "new metadata URI")
		fs.Parse(args[1:])
		if *rpc == "" || *idAddr == "" || *privkey == "" || *agentID <= 0 || *uri == "" {
			return fmt.Errorf("set-uri: missing arguments")
		}
		client, err := chain.Connect(*rpc)
		if err != nil {
			return err
		}
		identity, err := chain.NewIdentity(common.HexToAddress(*idAddr), client)
		if err != nil {
			return err
		}
		auth, err := transactor(ctx, *privkey, *chainID)
		if err != nil {
			return err
		}
		if err := identity.SetAgentURI(auth, big.NewInt(*agentID), *uri); err != nil {
			return err
		}
		fmt.Println("tx sent: setAgentURI")
		return nil

	case "slash":
		fs := flag.NewFlagSet("slash", flag.ExitOnError)
		rpc := fs.String("rpc", os.Getenv("CHAIN_RPC_URL"), "RPC URL")
		vaultAddr := fs.String("vault", "", "StakingVault address")
		privkey := fs.String("privkey", os.Getenv("AGENT_PRIVATE_KEY"), "signing key (hex)")
		chainID := fs.Int64("chain-id", 48816, "chain id")
		agentID := fs.Int64("agent-id", 0, "agent id")
		amount := fs.String("amount", "", "amount to slash in wei")
		reason := fs.String("reason", "", "slash reason")
		fs.Parse(args[1:])
		wei, ok := new(big.Int).SetString(*amount, 10)
		if *rpc == "" || *vaultAddr == "" || *privkey == "" || *agentID <= 0 || !ok || *reason == "" {
			return fmt.Errorf("slash: missing or invalid arguments")
		}
		client, err := chain.Connect(*rpc)
		if err != nil {
			return err
		}
		vault, err := chain.NewVault(common.HexToAddress(*vaultAddr), client)
		if err != nil {
			return err
		}
		auth, err := transactor(ctx, *privkey, *chainID)
		if err != nil {
			return err
		}
		if err := vault.Slash(auth, big.NewInt(*agentID), wei, *reason); err != nil {
			return err
		}
		fmt.Printf("tx sent: slash %s wei from agent %d (%s)\n", wei, *agentID, *reason)
		return nil

	case "feedback":
		fs := flag.NewFlagSet("feedback", flag.ExitOnError)
		rpc := fs.String("rpc", os.Getenv("CHAIN_RPC_URL"), "RPC URL")
		repAddr := fs.String("reputation", "", "ReputationRegistry address")
		privkey := fs.String("privkey", os.Getenv("AGENT_PRIVATE_KEY"), "signing key (hex)")
		chainID := fs.Int64("chain-id", 48816, "chain id")
		agentID := fs.Int64("agent-id", 0, "agent id")
		score := fs.Int64("score", -1, "feedback score, 0-100")
		fs.Parse(args[1:])
		if *rpc == "" || *repAddr == "" || *privkey == "" || *agentID <= 0 {
			return fmt.Errorf("feedback: missing arguments")
		}
		if err := validateScore(*score); err != nil {
			return err
		}
		client, err := chain.Connect(*rpc)
		if err != nil {
			return err
		}
		reputation, err := chain.NewReputation(common.HexToAddress(*repAddr), client)
		if err != nil {
			return err
		}
		auth, err := transactor(ctx, *privkey, *chainID)
		if err != nil {
			return err
		}
		if err := reputation.GiveFeedback(auth, big.NewInt(*agentID), *score); err != nil {
			return err
		}
		fmt.Printf("tx sent: feedback %d for agent %d\n", *score, *agentID)
		return nil

	case "stake-info":
		fs := flag.NewFlagSet("stake-info", flag.ExitOnError)
		rpc := fs.String("rpc", os.Getenv("CHAIN_RPC_URL"), "RPC URL")
		vaultAddr := fs.String("vault", "", "StakingVault address")
		agentID := fs.Int64("agent-id", 0, "agent id")
		fs.Parse(args[1:])
		if *rpc == "" || *vaultAddr == "" || *agentID <= 0 {
			return fmt.Errorf("stake-info: missing arguments")
		}
		client, err := chain.Connect(*rpc)
		if err != nil {
			return err
		}
		vault, err := chain.NewVault(common.HexToAddress(*vaultAddr), client)
		if err != nil {
			return err
		}
		info, err := vault.GetStakeInfo(ctx, nil, big.NewInt(*agentID))
		if err != nil {
			return err
		}
		fmt.Printf("agent %d  amount %s wei  slashed %s wei  owner %s  active %t\n",
			*agentID, info.Amount, info.Slashed, info.Owner.Hex(), info.Active)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// transactor builds signed transaction options from a hex private key.
func transactor(ctx context.Context, privkey string, chainID int64) (*bind.TransactOpts, error) {
	wallet, err := chain.NewWallet(privkey, chainID)
	if err != nil {
		return nil, err
	}
	return wallet.TransactOpts(ctx)
}

// validateScore bounds feedback scores to the registry's 0-100 range.
func validateScore(score int64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("score must be between 0 and 100, got %d", score)
	}
	return nil
}
