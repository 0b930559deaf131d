// Package relay validates batches of signed raw transactions against the
// gateway's contract whitelist and submits them to the node.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

const (
	// MaxBatchSize bounds a single POST /transactions body.
	MaxBatchSize = 10
	// MaxGasLimit caps the gas attached to gateway-built transactions and
	// doubles as the sentinel for out-of-gas receipts.
	MaxGasLimit = 50_000_000
)

// ErrBatchTooLarge is returned before any transaction is processed.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d transactions", MaxBatchSize)

// ErrAPIKeyRequired is returned when an unauthenticated caller submits more
// than one transaction.
var ErrAPIKeyRequired = errors.New("posting multiple transactions requires an API key")

// Result is the per-transaction outcome: the transaction hash on success or
// a rejection message.
type Result struct {
	IsError bool   `json:"is_error"`
	Message string `json:"message"`
}

// Backend is the node surface the relay needs; *ethclient.Client satisfies
// it.
type Backend interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Relay validates and submits signed transactions for one chain.
type Relay struct {
	log zerolog.Logger

	chainName   string
	chainID     *big.Int
	whitelist   map[common.Address]string
	nectarToken common.Address
	erc20Relay  common.Address
	nectarABI   abi.ABI
}

// New builds a relay. whitelist maps every accepted recipient address to its
// contract name.
func New(
	chainName string,
	chainID *big.Int,
	whitelist map[common.Address]string,
	nectarToken common.Address,
	erc20Relay common.Address,
	nectarABI abi.ABI,
) *Relay {
	return &Relay{
		log:         logger.With().Str("component", "relay").Str("chain", chainName).Logger(),
		chainName:   chainName,
		chainID:     chainID,
		whitelist:   whitelist,
		nectarToken: nectarToken,
		erc20Relay:  erc20Relay,
		nectarABI:   nectarABI,
	}
}

// Process validates and submits a batch. caller is the authenticated
// account's bound address; authed distinguishes a zero address from a
// missing API key. Per-transaction failures never abort the batch; the
// second return reports whether any entry failed.
func (r *Relay) Process(
	ctx context.Context,
	backend Backend,
	rawTxs []string,
	caller common.Address,
	authed bool,
) ([]Result, bool, error) {
	if len(rawTxs) > MaxBatchSize {
		return nil, false, ErrBatchTooLarge
	}
	if !authed && len(rawTxs) > 1 {
		return nil, false, ErrAPIKeyRequired
	}

	results := make([]Result, len(rawTxs))
	anyError := false
	for i, raw := range rawTxs {
		results[i] = r.processOne(ctx, backend, raw, caller, authed)
		if results[i].IsError {
			anyError = true
		}
	}
	return results, anyError, nil
}

func (r *Relay) processOne(
	ctx context.Context,
	backend Backend,
	raw string,
	caller common.Address,
	authed bool,
) Result {
	tx, sender, err := r.decode(raw)
	if err != nil {
		return Result{IsError: true, Message: err.Error()}
	}
	if err := r.validate(tx, sender, caller, authed); err != nil {
		return Result{IsError: true, Message: err.Error()}
	}
	if err := backend.SendTransaction(ctx, tx); err != nil {
		r.log.Warn().Err(err).Str("txn_hash", tx.Hash().Hex()).Msg("submitting transaction")
		return Result{IsError: true, Message: fmt.Sprintf("submitting transaction: %s", err)}
	}
	return Result{Message: tx.Hash().Hex()}
}

func (r *Relay) decode(raw string) (*types.Transaction, common.Address, error) {
	b, err := hexutil.Decode(withHexPrefix(raw))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("decoding transaction hex: %s", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, common.Address{}, fmt.Errorf("decoding signed transaction: %s", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("recovering transaction sender: %s", err)
	}
	return tx, sender, nil
}

func (r *Relay) validate(tx *types.Transaction, sender, caller common.Address, authed bool) error {
	if tx.To() == nil {
		return errors.New("contract deployment is not allowed")
	}
	if tx.ChainId().Cmp(r.chainID) != 0 {
		return fmt.Errorf("transaction is for network id %s, expected %s", tx.ChainId(), r.chainID)
	}
	if authed {
		if sender != caller {
			return errors.New("transaction sender does not match the authenticated address")
		}
		if _, ok := r.whitelist[*tx.To()]; !ok {
			return errors.New("transaction recipient is not a known contract")
		}
		return nil
	}
	return r.validateWithdrawal(tx)
}

// validateWithdrawal enforces the unauthenticated shape: a single
// nectar-token transfer to the erc20-relay address on the side chain.
func (r *Relay) validateWithdrawal(tx *types.Transaction) error {
	reject := errors.New("only withdrawals allowed without an API key")
	if r.chainName != "side" {
		return reject
	}
	if *tx.To() != r.nectarToken {
		return reject
	}
	if tx.Value().Sign() != 0 {
		return reject
	}
	data := tx.Data()
	if len(data) < 4 {
		return reject
	}
	method, err := r.nectarABI.MethodById(data[:4])
	if err != nil || method.Name != "transfer" {
		return reject
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return reject
	}
	to, ok := args[0].(common.Address)
	if !ok || to != r.erc20Relay {
		return reject
	}
	amount, ok := args[1].(*big.Int)
	if !ok || amount.Sign() <= 0 {
		return reject
	}
	return nil
}

func withHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s
	}
	return "0x" + s
}
