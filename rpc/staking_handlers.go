package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"stakepool/core"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/staking"
	"stakepool/storage/eventlog"
)

// OperationFailure is the error data attached to a transaction that executed
// and failed. The receipt is journaled like a successful one.
type OperationFailure struct {
	Code    string         `json:"code"`
	TxHash  string         `json:"txHash"`
	Receipt *types.Receipt `json:"receipt"`
}

func stakingStatus(err error) int {
	switch {
	case errors.Is(err, staking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, staking.ErrNoActiveStake), errors.Is(err, staking.ErrPoolUninitialized):
		return http.StatusNotFound
	case errors.Is(err, staking.ErrTransferFailed):
		return http.StatusUnprocessableEntity
	case staking.Code(err) == "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// queryError maps a read failure. Missing records are reported as not found
// with the taxonomy code in data.
func queryError(err error) *methodError {
	if code := staking.Code(err); code != "" {
		return newMethodError(stakingStatus(err), codeStakingNotFound, err.Error(), map[string]string{"code": code})
	}
	return serverError("query failed", err)
}

func singleParam(params []json.RawMessage, dst interface{}) *methodError {
	if len(params) != 1 {
		return invalidParams("exactly one parameter expected", nil)
	}
	if err := json.Unmarshal(params[0], dst); err != nil {
		return invalidParams("invalid parameter", err.Error())
	}
	return nil
}

func addressParam(params []json.RawMessage) ([20]byte, *methodError) {
	var raw string
	if failed := singleParam(params, &raw); failed != nil {
		return [20]byte{}, failed
	}
	addr, err := crypto.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, invalidParams("invalid address", err.Error())
	}
	return addr, nil
}

func (s *Server) handleSendTransaction(r *http.Request, params []json.RawMessage) (interface{}, *methodError) {
	var tx types.Transaction
	if failed := singleParam(params, &tx); failed != nil {
		return nil, failed
	}
	receipt, err := s.node.SubmitTransaction(r.Context(), &tx)
	if err == nil {
		return receipt, nil
	}
	if receipt != nil {
		return nil, newMethodError(stakingStatus(err), codeStakingFailed, err.Error(), OperationFailure{
			Code:    staking.Code(err),
			TxHash:  receipt.TxHash,
			Receipt: receipt,
		})
	}
	if core.IsRejection(err) {
		return nil, newMethodError(http.StatusBadRequest, codeTxRejected, err.Error(), nil)
	}
	return nil, serverError("failed to apply transaction", err)
}

func (s *Server) handleGetPool(_ *http.Request, _ []json.RawMessage) (interface{}, *methodError) {
	pool, err := s.node.Pool()
	if err != nil {
		return nil, queryError(err)
	}
	reserve, err := s.node.RewardReserve()
	if err != nil {
		return nil, queryError(err)
	}
	return poolResultFrom(pool, s.node.Addresses(), s.node.Token(), reserve), nil
}

func (s *Server) handleGetStake(_ *http.Request, params []json.RawMessage) (interface{}, *methodError) {
	owner, failed := addressParam(params)
	if failed != nil {
		return nil, failed
	}
	pool, err := s.node.Pool()
	if err != nil {
		return nil, queryError(err)
	}
	record, err := s.node.StakeOf(owner)
	if err != nil {
		return nil, queryError(err)
	}
	return stakeResultFrom(record, s.node.StakeAddress(owner), pool.LockPeriod), nil
}

func (s *Server) handlePreviewRewards(_ *http.Request, params []json.RawMessage) (interface{}, *methodError) {
	owner, failed := addressParam(params)
	if failed != nil {
		return nil, failed
	}
	pending, err := s.node.PreviewRewards(owner)
	if err != nil {
		return nil, queryError(err)
	}
	reserve, err := s.node.RewardReserve()
	if err != nil {
		return nil, queryError(err)
	}
	return PreviewResult{Owner: addressString(owner), Pending: formatUint(pending), Reserve: formatUint(reserve)}, nil
}

func (s *Server) handleGetReserve(_ *http.Request, _ []json.RawMessage) (interface{}, *methodError) {
	reserve, err := s.node.RewardReserve()
	if err != nil {
		return nil, queryError(err)
	}
	return formatUint(reserve), nil
}

func (s *Server) handleGetBalance(_ *http.Request, params []json.RawMessage) (interface{}, *methodError) {
	addr, failed := addressParam(params)
	if failed != nil {
		return nil, failed
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		return nil, serverError("failed to load balance", err)
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		return nil, serverError("failed to load nonce", err)
	}
	return BalanceResult{Address: addressString(addr), Token: s.node.Token(), Balance: formatUint(balance), Nonce: nonce}, nil
}

func (s *Server) handleGetNonce(_ *http.Request, params []json.RawMessage) (interface{}, *methodError) {
	addr, failed := addressParam(params)
	if failed != nil {
		return nil, failed
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		return nil, serverError("failed to load nonce", err)
	}
	return nonce, nil
}

func (s *Server) handleProgramAddresses(_ *http.Request, _ []json.RawMessage) (interface{}, *methodError) {
	addrs := s.node.Addresses()
	return ProgramAddressesResult{
		ChainID: s.node.ChainID(),
		Token:   s.node.Token(),
		Program: addressString(addrs.Program),
		Pool:    addressString(addrs.Pool),
		Vault:   addressString(addrs.Vault),
	}, nil
}

func (s *Server) journalUnavailable() *methodError {
	return newMethodError(http.StatusServiceUnavailable, codeServerError, "event journal not configured", nil)
}

func (s *Server) handleListEvents(r *http.Request, params []json.RawMessage) (interface{}, *methodError) {
	if s.journal == nil {
		return nil, s.journalUnavailable()
	}
	var filter eventListParams
	if len(params) > 0 {
		if failed := singleParam(params, &filter); failed != nil {
			return nil, failed
		}
	}
	address := strings.TrimSpace(filter.Address)
	if address != "" {
		parsed, err := crypto.ParseAddress(address)
		if err != nil {
			return nil, invalidParams("invalid address filter", err.Error())
		}
		address = addressString(parsed)
	}
	records, err := s.journal.List(r.Context(), eventlog.Filter{
		Type:     filter.Type,
		Address:  address,
		AfterSeq: filter.AfterSeq,
		Limit:    filter.Limit,
	})
	if err != nil {
		return nil, serverError("failed to list events", err)
	}
	out := make([]EventResult, 0, len(records))
	for i := range records {
		evt, err := eventResultFrom(&records[i])
		if err != nil {
			return nil, serverError("failed to decode event", err)
		}
		out = append(out, evt)
	}
	return out, nil
}

func (s *Server) handleGetReceipt(r *http.Request, params []json.RawMessage) (interface{}, *methodError) {
	if s.journal == nil {
		return nil, s.journalUnavailable()
	}
	var hash string
	if failed := singleParam(params, &hash); failed != nil {
		return nil, failed
	}
	hash = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hash)), "0x")
	if hash == "" {
		return nil, invalidParams("transaction hash required", nil)
	}
	hash = "0x" + hash
	receipt, err := s.journal.Receipt(r.Context(), hash)
	if errors.Is(err, eventlog.ErrNotFound) {
		return nil, newMethodError(http.StatusNotFound, codeStakingNotFound, "receipt not found", hash)
	}
	if err != nil {
		return nil, serverError("failed to load receipt", err)
	}
	return receipt, nil
}
