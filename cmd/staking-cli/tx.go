package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/storage/history"
)

type programAddresses struct {
	ChainID uint64 `json:"chainId"`
	Token   string `json:"token"`
	Program string `json:"program"`
	Pool    string `json:"pool"`
	Vault   string `json:"vault"`
}

type operationFailure struct {
	Code    string         `json:"code"`
	TxHash  string         `json:"txHash"`
	Receipt *types.Receipt `json:"receipt"`
}

func parseAmount(value string) (uint64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if cleaned == "" {
		return 0, fmt.Errorf("amount is required")
	}
	amount, err := strconv.ParseUint(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if amount == 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// submit fills chain id and nonce, signs tx with the wallet key and sends it.
// The outcome is written to the local history whether or not it succeeded.
func (c *cli) submit(tx *types.Transaction) int {
	key, err := c.loadKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	sender := key.PubKey().Address().String()

	var addrs programAddresses
	if err := c.call("staking_programAddresses", &addrs); err != nil {
		fmt.Fprintf(c.stderr, "Error fetching chain id: %v\n", err)
		return 1
	}
	var nonce uint64
	if err := c.call("staking_getNonce", &nonce, sender); err != nil {
		fmt.Fprintf(c.stderr, "Error fetching nonce: %v\n", err)
		return 1
	}
	tx.ChainID = addrs.ChainID
	tx.Nonce = nonce
	if err := tx.Sign(key.PrivateKey); err != nil {
		fmt.Fprintf(c.stderr, "Error signing transaction: %v\n", err)
		return 1
	}
	txHash, err := tx.HashHex()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error hashing transaction: %v\n", err)
		return 1
	}

	var receipt types.Receipt
	callErr := c.call("staking_sendTransaction", &receipt, tx)
	entry := history.Entry{TxHash: txHash, Op: tx.Type.String(), Sender: sender, Endpoint: c.endpoint}
	if callErr == nil {
		entry.Success = receipt.Success
		entry.ErrorCode = receipt.ErrorCode
		entry.Error = receipt.Error
		if len(receipt.Result) > 0 {
			if b, err := json.Marshal(receipt.Result); err == nil {
				entry.Result = string(b)
			}
		}
		c.recordHistory(entry)
		c.printJSON(receipt)
		return 0
	}

	var rpcErr *rpcError
	if errors.As(callErr, &rpcErr) {
		var failure operationFailure
		if len(rpcErr.Data) > 0 && json.Unmarshal(rpcErr.Data, &failure) == nil && failure.Receipt != nil {
			entry.ErrorCode = failure.Code
			entry.Error = rpcErr.Message
			c.recordHistory(entry)
			fmt.Fprintf(c.stderr, "Transaction %s failed [%s]: %s\n", failure.TxHash, failure.Code, rpcErr.Message)
			return 1
		}
	}
	fmt.Fprintf(c.stderr, "Error sending transaction: %v\n", callErr)
	return 1
}

func (c *cli) recordHistory(entry history.Entry) {
	if c.historyPath == "" || c.historyPath == "off" {
		return
	}
	store, err := history.Open(c.historyPath)
	if err != nil {
		fmt.Fprintf(c.stderr, "Warning: history unavailable: %v\n", err)
		return
	}
	defer store.Close()
	if _, err := store.Record(context.Background(), entry); err != nil {
		fmt.Fprintf(c.stderr, "Warning: history not recorded: %v\n", err)
	}
}

func (c *cli) poolParamsFlags(name string, args []string) (uint64, int64, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rate := fs.Uint64("rate", 0, "reward units per staked unit per second")
	lock := fs.Int64("lock", 0, "lock period in seconds")
	if err := fs.Parse(args); err != nil {
		return 0, 0, false
	}
	if *lock < 0 {
		fmt.Fprintln(c.stderr, "Error: --lock must not be negative")
		return 0, 0, false
	}
	return *rate, *lock, true
}

func (c *cli) runInitialize(args []string) int {
	rate, lock, ok := c.poolParamsFlags("init", args)
	if !ok {
		return 1
	}
	return c.submit(&types.Transaction{Type: types.TxTypeInitializePool, RewardRate: rate, LockPeriod: lock})
}

func (c *cli) runUpdatePool(args []string) int {
	rate, lock, ok := c.poolParamsFlags("update-pool", args)
	if !ok {
		return 1
	}
	return c.submit(&types.Transaction{Type: types.TxTypeUpdatePool, RewardRate: rate, LockPeriod: lock})
}

func (c *cli) runStake(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Usage: staking-cli stake <amount>")
		return 1
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	return c.submit(&types.Transaction{Type: types.TxTypeStake, Amount: amount})
}

func (c *cli) runFund(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Usage: staking-cli fund <amount>")
		return 1
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	return c.submit(&types.Transaction{Type: types.TxTypeFundRewards, Amount: amount})
}

// runOwnerOp handles claim and unstake, which act on the signer's position
// unless --owner names another one.
func (c *cli) runOwnerOp(args []string, name string) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	ownerFlag := fs.String("owner", "", "position owner (defaults to the signer)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	txType := types.TxTypeClaimRewards
	if name == "unstake" {
		txType = types.TxTypeUnstake
	}
	tx := &types.Transaction{Type: txType}
	if strings.TrimSpace(*ownerFlag) != "" {
		owner, err := crypto.ParseAddress(*ownerFlag)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: invalid owner: %v\n", err)
			return 1
		}
		tx.Owner = owner[:]
	}
	return c.submit(tx)
}

func (c *cli) runSetPaused(args []string, paused bool) int {
	if len(args) != 0 {
		fmt.Fprintln(c.stderr, "Usage: staking-cli pause|resume")
		return 1
	}
	return c.submit(&types.Transaction{Type: types.TxTypeSetPaused, Paused: paused})
}
