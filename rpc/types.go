package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"stakepool/crypto"
	"stakepool/native/staking"
	"stakepool/storage/eventlog"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeTxRejected     = -32010
	codeRateLimited    = -32020

	codeStakingFailed   = -32030
	codeStakingNotFound = -32031
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// methodError pairs a JSON-RPC error with the HTTP status it is written with.
type methodError struct {
	status int
	err    RPCError
}

func newMethodError(status, code int, message string, data interface{}) *methodError {
	return &methodError{status: status, err: RPCError{Code: code, Message: message, Data: data}}
}

func invalidParams(message string, data interface{}) *methodError {
	return newMethodError(http.StatusBadRequest, codeInvalidParams, message, data)
}

func serverError(message string, err error) *methodError {
	var data interface{}
	if err != nil {
		data = err.Error()
	}
	return newMethodError(http.StatusInternalServerError, codeServerError, message, data)
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// Amounts are rendered as decimal strings so JavaScript clients keep full
// uint64 precision.

type PoolResult struct {
	Address        string `json:"address"`
	Vault          string `json:"vault"`
	Token          string `json:"token"`
	Authority      string `json:"authority"`
	RewardRate     string `json:"rewardRate"`
	LockPeriod     int64  `json:"lockPeriod"`
	TotalStaked    string `json:"totalStaked"`
	LastUpdateTime int64  `json:"lastUpdateTime"`
	Paused         bool   `json:"paused"`
	RewardReserve  string `json:"rewardReserve"`
}

type StakeResult struct {
	Address       string `json:"address"`
	Owner         string `json:"owner"`
	Amount        string `json:"amount"`
	StartTime     int64  `json:"startTime"`
	LastClaimTime int64  `json:"lastClaimTime"`
	UnlockTime    int64  `json:"unlockTime"`
}

type PreviewResult struct {
	Owner   string `json:"owner"`
	Pending string `json:"pending"`
	Reserve string `json:"reserve"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type ProgramAddressesResult struct {
	ChainID uint64 `json:"chainId"`
	Token   string `json:"token"`
	Program string `json:"program"`
	Pool    string `json:"pool"`
	Vault   string `json:"vault"`
}

type EventResult struct {
	Seq        uint64            `json:"seq"`
	TxHash     string            `json:"txHash"`
	Position   int               `json:"position"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

type eventListParams struct {
	Type     string `json:"type,omitempty"`
	Address  string `json:"address,omitempty"`
	AfterSeq uint64 `json:"afterSeq,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func addressString(raw [20]byte) string { return crypto.AddressFromRaw(raw).String() }

func poolResultFrom(pool *staking.Pool, addrs staking.Addresses, token string, reserve uint64) PoolResult {
	return PoolResult{
		Address:        addressString(addrs.Pool),
		Vault:          addressString(addrs.Vault),
		Token:          token,
		Authority:      addressString(pool.Authority),
		RewardRate:     formatUint(pool.RewardRate),
		LockPeriod:     pool.LockPeriod,
		TotalStaked:    formatUint(pool.TotalStaked),
		LastUpdateTime: pool.LastUpdateTime,
		Paused:         pool.Paused,
		RewardReserve:  formatUint(reserve),
	}
}

func stakeResultFrom(record *staking.StakeRecord, recordAddr [20]byte, lockPeriod int64) StakeResult {
	unlock, err := record.UnlockTime(lockPeriod)
	if err != nil {
		unlock = -1
	}
	return StakeResult{
		Address:       addressString(recordAddr),
		Owner:         addressString(record.Owner),
		Amount:        formatUint(record.Amount),
		StartTime:     record.StartTime,
		LastClaimTime: record.LastClaimTime,
		UnlockTime:    unlock,
	}
}

func eventResultFrom(record *eventlog.EventRecord) (EventResult, error) {
	evt, err := record.Event()
	if err != nil {
		return EventResult{}, err
	}
	return EventResult{
		Seq:        record.Seq,
		TxHash:     record.TxHash,
		Position:   record.Position,
		Type:       record.Type,
		Attributes: evt.Attributes,
		Timestamp:  record.Timestamp,
	}, nil
}
