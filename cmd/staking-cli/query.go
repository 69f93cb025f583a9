package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"stakepool/storage/export"
	"stakepool/storage/history"
)

type eventResult struct {
	Seq        uint64            `json:"seq"`
	TxHash     string            `json:"txHash"`
	Position   int               `json:"position"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

type eventFilter struct {
	Type     string `json:"type,omitempty"`
	Address  string `json:"address,omitempty"`
	AfterSeq uint64 `json:"afterSeq,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// runQuery prints the raw result of a read method.
func (c *cli) runQuery(method, usage string, args []string, wantArgs int) int {
	if len(args) != wantArgs {
		fmt.Fprintln(c.stderr, usage)
		return 1
	}
	params := make([]interface{}, 0, len(args))
	for _, arg := range args {
		params = append(params, strings.TrimSpace(arg))
	}
	var result json.RawMessage
	if err := c.call(method, &result, params...); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		fmt.Fprintln(c.stdout, string(result))
		return 0
	}
	c.printJSON(pretty)
	return 0
}

func (c *cli) runBalance(args []string) int {
	return c.runQuery("staking_getBalance", "Usage: staking-cli balance <address>", args, 1)
}

func (c *cli) runPool(args []string) int {
	return c.runQuery("staking_getPool", "Usage: staking-cli pool", args, 0)
}

func (c *cli) runPosition(args []string) int {
	return c.runQuery("staking_getStake", "Usage: staking-cli position <address>", args, 1)
}

func (c *cli) runPreview(args []string) int {
	return c.runQuery("staking_previewRewards", "Usage: staking-cli preview <address>", args, 1)
}

func (c *cli) runProgramAddresses(args []string) int {
	return c.runQuery("staking_programAddresses", "Usage: staking-cli addresses", args, 0)
}

func (c *cli) runReceipt(args []string) int {
	return c.runQuery("staking_getReceipt", "Usage: staking-cli receipt <txHash>", args, 1)
}

func (c *cli) eventFlags(name string, args []string) (*eventFilter, string, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	filter := &eventFilter{}
	fs.StringVar(&filter.Type, "type", "", "event type, e.g. staking.staked")
	fs.StringVar(&filter.Address, "address", "", "subject address")
	fs.Uint64Var(&filter.AfterSeq, "after", 0, "only events after this sequence number")
	fs.IntVar(&filter.Limit, "limit", 0, "page size (server caps at 1000)")
	out := fs.String("out", "", "output file")
	if err := fs.Parse(args); err != nil {
		return nil, "", false
	}
	return filter, *out, true
}

func (c *cli) runEvents(args []string) int {
	filter, _, ok := c.eventFlags("events", args)
	if !ok {
		return 1
	}
	var evts []eventResult
	if err := c.call("staking_listEvents", &evts, filter); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	c.printJSON(evts)
	return 0
}

// fetchAllEvents pages through the journal from filter.AfterSeq.
func (c *cli) fetchAllEvents(filter *eventFilter) ([]eventResult, error) {
	var all []eventResult
	for {
		var page []eventResult
		if err := c.call("staking_listEvents", &page, filter); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || (filter.Limit > 0 && len(page) < filter.Limit) {
			return all, nil
		}
		filter.AfterSeq = page[len(page)-1].Seq
	}
}

func exportRow(evt eventResult) export.EventRow {
	attrs, _ := json.Marshal(evt.Attributes)
	address := evt.Attributes["addr"]
	if address == "" {
		address = evt.Attributes["authority"]
	}
	amount := evt.Attributes["amount"]
	switch evt.Type {
	case "staking.rewardsClaimed":
		amount = evt.Attributes["reward"]
	case "staking.unstaked":
		amount = evt.Attributes["principal"]
	}
	return export.EventRow{
		Seq:        int64(evt.Seq),
		TxHash:     evt.TxHash,
		Position:   int32(evt.Position),
		Type:       evt.Type,
		Address:    address,
		Amount:     amount,
		Attributes: string(attrs),
		Timestamp:  evt.Timestamp,
	}
}

func (c *cli) runExportEvents(args []string) int {
	filter, out, ok := c.eventFlags("export-events", args)
	if !ok {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		fmt.Fprintln(c.stderr, "Usage: staking-cli export-events --out FILE.parquet [--type T] [--address A] [--after N]")
		return 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 500
	}
	evts, err := c.fetchAllEvents(filter)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	rows := make([]export.EventRow, 0, len(evts))
	for _, evt := range evts {
		rows = append(rows, exportRow(evt))
	}
	if err := export.WriteParquet(out, rows); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "Exported %d events to %s\n", len(rows), out)
	return 0
}

func (c *cli) runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	sender := fs.String("sender", "", "only entries signed by this address")
	limit := fs.Int("limit", 20, "maximum entries")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	store, err := history.Open(c.historyPath)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()
	entries, err := store.List(context.Background(), *sender, *limit)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	for _, entry := range entries {
		status := "ok"
		if !entry.Success {
			status = "failed"
			if entry.ErrorCode != "" {
				status += " [" + entry.ErrorCode + "]"
			}
		}
		fmt.Fprintf(c.stdout, "%s  %-14s %-8s %s %s\n",
			entry.SubmittedAt.Format("2006-01-02 15:04:05"), entry.Op, status, entry.TxHash, entry.Sender)
	}
	return 0
}

