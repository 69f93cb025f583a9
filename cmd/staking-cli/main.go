package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stakepool/cmd/internal/passphrase"
)

const (
	keystorePassEnv = "STAKEPOOL_KEYSTORE_PASSPHRASE"
	rpcTokenEnv     = "STAKEPOOL_RPC_TOKEN"
)

type cli struct {
	endpoint    string
	token       string
	historyPath string
	keyPath     string
	stdout      io.Writer
	stderr      io.Writer
	httpClient  *http.Client
	passphrase  func() (string, error)
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		endpoint:    envOr("STAKEPOOL_RPC_URL", "http://localhost:8545"),
		token:       strings.TrimSpace(os.Getenv(rpcTokenEnv)),
		historyPath: envOr("STAKEPOOL_HISTORY", defaultHistoryPath()),
		keyPath:     envOr("STAKEPOOL_KEYSTORE", "wallet.keystore"),
		stdout:      stdout,
		stderr:      stderr,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		passphrase:  passphrase.NewSource(keystorePassEnv, "wallet keystore").Get,
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "stakepool-history.db"
	}
	return filepath.Join(dir, "stakepool", "history.db")
}

func main() {
	os.Exit(newCLI(os.Stdout, os.Stderr).run(os.Args[1:]))
}

// applyGlobalFlags strips --rpc, --key and --history from args.
func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var target *string
		var name string
		switch {
		case arg == "--rpc" || strings.HasPrefix(arg, "--rpc="):
			target, name = &c.endpoint, "--rpc"
		case arg == "--key" || strings.HasPrefix(arg, "--key="):
			target, name = &c.keyPath, "--key"
		case arg == "--history" || strings.HasPrefix(arg, "--history="):
			target, name = &c.historyPath, "--history"
		default:
			out = append(out, arg)
			continue
		}
		if strings.HasPrefix(arg, name+"=") {
			*target = strings.TrimPrefix(arg, name+"=")
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("missing value for %s", name)
		}
		*target = args[i+1]
		i++
	}
	return out, nil
}

func (c *cli) run(args []string) int {
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return 1
	}
	if len(args) < 1 {
		c.printUsage()
		return 1
	}
	command, rest := args[0], args[1:]
	switch command {
	case "generate-key":
		return c.runGenerateKey(rest)
	case "address":
		return c.runAddress(rest)
	case "balance":
		return c.runBalance(rest)
	case "pool":
		return c.runPool(rest)
	case "position":
		return c.runPosition(rest)
	case "preview":
		return c.runPreview(rest)
	case "addresses":
		return c.runProgramAddresses(rest)
	case "init":
		return c.runInitialize(rest)
	case "stake":
		return c.runStake(rest)
	case "claim":
		return c.runOwnerOp(rest, "claim")
	case "unstake":
		return c.runOwnerOp(rest, "unstake")
	case "fund":
		return c.runFund(rest)
	case "update-pool":
		return c.runUpdatePool(rest)
	case "pause":
		return c.runSetPaused(rest, true)
	case "resume":
		return c.runSetPaused(rest, false)
	case "events":
		return c.runEvents(rest)
	case "receipt":
		return c.runReceipt(rest)
	case "export-events":
		return c.runExportEvents(rest)
	case "history":
		return c.runHistory(rest)
	case "help", "-h", "--help":
		c.printUsage()
		return 0
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", command)
		c.printUsage()
		return 1
	}
}

func (c *cli) printUsage() {
	fmt.Fprintln(c.stderr, `Usage: staking-cli [--rpc URL] [--key KEYSTORE] [--history DB] <command> [options]

Keys:
  generate-key [--out PATH]            Create an encrypted wallet keystore
  address                              Print the address of the wallet keystore

Queries:
  balance <address>                    Stake token balance and next nonce
  pool                                 Pool configuration, totals and reward reserve
  position <address>                   Stake record of an owner
  preview <address>                    Rewards a claim would pay right now
  addresses                            Chain id, token and program addresses
  events [--type T] [--address A] [--after N] [--limit N]
  receipt <txHash>

Transactions (signed with the wallet keystore):
  init --rate R --lock SECONDS         Create the pool; the signer becomes authority
  stake <amount>
  claim [--owner ADDRESS]
  unstake [--owner ADDRESS]
  fund <amount>                        Add to the reward reserve
  update-pool --rate R --lock SECONDS  Authority only
  pause | resume                       Authority only

Local:
  history [--sender ADDRESS] [--limit N]
  export-events --out FILE.parquet [--type T] [--address A]

Environment: STAKEPOOL_RPC_URL, STAKEPOOL_RPC_TOKEN, STAKEPOOL_KEYSTORE,
STAKEPOOL_KEYSTORE_PASSPHRASE, STAKEPOOL_HISTORY`)
}
