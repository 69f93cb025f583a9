package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"stakepool/crypto"
)

func (c *cli) runGenerateKey(args []string) int {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	out := fs.String("out", c.keyPath, "keystore file to create")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		fmt.Fprintf(c.stderr, "Error: %s already exists; pass --force to overwrite\n", *out)
		return 1
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	pass, err := c.passphrase()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error generating key: %v\n", err)
		return 1
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		fmt.Fprintf(c.stderr, "Error saving keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "Keystore written to %s\n", *out)
	fmt.Fprintf(c.stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

func (c *cli) loadKey() (*crypto.PrivateKey, error) {
	if _, err := os.Stat(c.keyPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("keystore %s not found. run staking-cli generate-key first", c.keyPath)
		}
		return nil, err
	}
	pass, err := c.passphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(c.keyPath, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore %s: %w", c.keyPath, err)
	}
	return key, nil
}

func (c *cli) runAddress(args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(c.stderr, "Usage: staking-cli address")
		return 1
	}
	key, err := c.loadKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return 0
}
