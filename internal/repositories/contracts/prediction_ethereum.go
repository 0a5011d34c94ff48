package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/predictware/roundkeeper/internal/interfaces"
	"github.com/predictware/roundkeeper/internal/lib"
	"github.com/predictware/roundkeeper/internal/repositories/rpc"
)

// Minimal ABI of the prediction contract, only the round-lifecycle surface
// this keeper drives.
const predictionABI = `[
	{"inputs":[],"name":"currentEpoch","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"epoch","type":"uint256"}],"name":"timestamps","outputs":[{"internalType":"uint256","name":"startTimestamp","type":"uint256"},{"internalType":"uint256","name":"lockTimestamp","type":"uint256"},{"internalType":"uint256","name":"closeTimestamp","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"executeRound","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// RoundTimestamps are the unix boundaries of one round. Fetched fresh on
// every check, never cached.
type RoundTimestamps struct {
	Start *big.Int
	Lock  *big.Int
	Close *big.Int
}

// LockTime returns the lock deadline as wall-clock time.
func (t RoundTimestamps) LockTime() time.Time {
	return time.Unix(t.Lock.Int64(), 0)
}

// PredictionEthereum is a handle to one prediction contract over one
// endpoint. Once built for a market it is kept for the process lifetime; a
// failover re-binds by dropping the handle from the registry, not by mutating
// it in place.
type PredictionEthereum struct {
	// config
	address common.Address
	privKey string

	// state
	nonce uint64
	mutex sync.Mutex

	// deps
	client   *rpc.EthClient
	contract *bind.BoundContract
	log      interfaces.ILogger
}

func NewPredictionEthereum(address common.Address, privKey string, client *rpc.EthClient, log interfaces.ILogger) *PredictionEthereum {
	parsedABI, err := abi.JSON(strings.NewReader(predictionABI))
	if err != nil {
		panic("invalid prediction ABI: " + err.Error())
	}

	return &PredictionEthereum{
		address:  address,
		privKey:  privKey,
		client:   client,
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
		log:      log,
	}
}

func (g *PredictionEthereum) Address() common.Address {
	return g.address
}

func (g *PredictionEthereum) Endpoint() string {
	return g.client.URL()
}

// CurrentEpoch reads the identifier of the contract's active round.
func (g *PredictionEthereum) CurrentEpoch(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "currentEpoch")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Timestamps reads the round boundaries for the given epoch.
func (g *PredictionEthereum) Timestamps(ctx context.Context, epoch *big.Int) (RoundTimestamps, error) {
	var out []interface{}
	err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "timestamps", epoch)
	if err != nil {
		return RoundTimestamps{}, err
	}
	return RoundTimestamps{
		Start: *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Lock:  *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Close: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
	}, nil
}

// BlockTime returns the timestamp of the latest block, used as "now" so the
// lock-deadline countdown follows chain time rather than the local clock.
func (g *PredictionEthereum) BlockTime(ctx context.Context) (time.Time, error) {
	header, err := g.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(header.Time), 0), nil
}

// ExecuteRound submits the round-advance transaction with the given gas price
// (in wei, decimal string) and waits for it to be mined. Returns the
// transaction hash.
func (g *PredictionEthereum) ExecuteRound(ctx context.Context, gasPriceWei string) (string, error) {
	opts, err := g.getTransactOpts(ctx, gasPriceWei)
	if err != nil {
		return "", err
	}

	tx, err := g.contract.Transact(opts, "executeRound")
	if err != nil {
		return "", err
	}

	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return tx.Hash().Hex(), err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

func (g *PredictionEthereum) getTransactOpts(ctx context.Context, gasPriceWei string) (*bind.TransactOpts, error) {
	privateKey, err := crypto.HexToECDSA(g.privKey)
	if err != nil {
		return nil, err
	}

	chainID, err := g.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	transactOpts, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, err
	}

	gasPrice, ok := new(big.Int).SetString(gasPriceWei, 10)
	if !ok {
		return nil, fmt.Errorf("invalid gas price %q", gasPriceWei)
	}

	fromAddr, err := lib.PrivKeyToAddr(privateKey)
	if err != nil {
		return nil, err
	}

	nonce, err := g.getNonce(ctx, fromAddr)
	if err != nil {
		return nil, err
	}

	transactOpts.Value = big.NewInt(0)
	// zero means no configured price, leave it to the node's estimate
	if gasPrice.Sign() > 0 {
		transactOpts.GasPrice = gasPrice
	}
	transactOpts.Nonce = nonce
	transactOpts.Context = ctx

	return transactOpts, nil
}

// getNonce reads the pending nonce from the chain, guarded by a local
// monotonic counter so two near-simultaneous submissions from this process
// cannot reuse a sequence number.
func (g *PredictionEthereum) getNonce(ctx context.Context, from common.Address) (*big.Int, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	nonce := &big.Int{}
	blockchainNonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nonce, err
	}

	if g.nonce > blockchainNonce {
		nonce.SetUint64(g.nonce)
	} else {
		nonce.SetUint64(blockchainNonce)
	}

	g.nonce = nonce.Uint64() + 1

	return nonce, nil
}
