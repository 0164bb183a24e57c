package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"agetoken/contracts/bulletin"
	dErrors "agetoken/pkg/domain-errors"
)

// Config holds the chain-facing configuration for the bulletin client.
type Config struct {
	RPCURL          string
	ContractAddress string
	// PrivateKeyHex is the issuer's ledger ECDSA key. Empty means read-only;
	// writes will fail with a configuration error.
	PrivateKeyHex string
	ChainID       int64
	// GasLimit defaults to 80_000, enough for a single bytes32 storage write.
	GasLimit uint64
}

const defaultGasLimit = 80_000

// EthereumBulletin implements Bulletin against an EVM chain. The backend is
// injected so tests can run against a simulated or fake chain.
type EthereumBulletin struct {
	backend  bind.ContractBackend
	address  common.Address
	abi      abi.ABI
	signer   *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
}

// Dial connects to the configured RPC endpoint and returns a bulletin client.
func Dial(ctx context.Context, cfg Config) (*EthereumBulletin, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, "could not connect to chain rpc")
	}
	return New(client, cfg)
}

// New builds a bulletin client on an existing backend.
func New(backend bind.ContractBackend, cfg Config) (*EthereumBulletin, error) {
	if cfg.ContractAddress == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "bulletin contract address is required")
	}
	parsed, err := abi.JSON(strings.NewReader(bulletin.ABI))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "could not parse bulletin ABI")
	}

	e := &EthereumBulletin{
		backend:  backend,
		address:  common.HexToAddress(cfg.ContractAddress),
		abi:      parsed,
		chainID:  big.NewInt(cfg.ChainID),
		gasLimit: cfg.GasLimit,
	}
	if e.gasLimit == 0 {
		e.gasLimit = defaultGasLimit
	}

	if cfg.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "could not parse ledger private key")
		}
		e.signer = key
		e.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return e, nil
}

// Thumbprint implements Bulletin.
func (e *EthereumBulletin) Thumbprint(ctx context.Context) ([32]byte, error) {
	return e.readBytes32(ctx, "thumbprint")
}

// RevocationRoot implements Bulletin.
func (e *EthereumBulletin) RevocationRoot(ctx context.Context) ([32]byte, error) {
	return e.readBytes32(ctx, "revocationRoot")
}

// SetThumbprint implements Bulletin.
func (e *EthereumBulletin) SetThumbprint(ctx context.Context, thumbprint [32]byte) (string, error) {
	return e.write(ctx, "setThumbprint", thumbprint)
}

// SetRevocationRoot implements Bulletin.
func (e *EthereumBulletin) SetRevocationRoot(ctx context.Context, root [32]byte) (string, error) {
	return e.write(ctx, "setRevocationRoot", root)
}

func (e *EthereumBulletin) readBytes32(ctx context.Context, method string) ([32]byte, error) {
	var out [32]byte
	data, err := e.abi.Pack(method)
	if err != nil {
		return out, dErrors.Wrap(err, dErrors.CodeInternal, "could not pack "+method+" call")
	}
	res, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &e.address, Data: data}, nil)
	if err != nil {
		return out, dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, method+" read failed")
	}
	vals, err := e.abi.Unpack(method, res)
	if err != nil {
		return out, dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, "could not decode "+method+" result")
	}
	v, ok := vals[0].([32]byte)
	if !ok {
		return out, dErrors.New(dErrors.CodeLedgerUnavailable, fmt.Sprintf("unexpected %s result type %T", method, vals[0]))
	}
	return v, nil
}

func (e *EthereumBulletin) write(ctx context.Context, method string, value [32]byte) (string, error) {
	if e.signer == nil {
		return "", dErrors.New(dErrors.CodeConfiguration, "ledger private key not configured")
	}

	data, err := e.abi.Pack(method, value)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not pack "+method+" call")
	}

	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, "could not fetch nonce")
	}

	tx, err := e.buildTx(ctx, nonce, data)
	if err != nil {
		return "", err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), e.signer)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign "+method+" transaction")
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, method+" submission failed")
	}
	return signed.Hash().Hex(), nil
}

// buildTx prefers EIP-1559 fees and falls back to a legacy transaction on
// chains without a base fee.
func (e *EthereumBulletin) buildTx(ctx context.Context, nonce uint64, data []byte) (*types.Transaction, error) {
	head, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, "could not fetch chain head")
	}

	if head.BaseFee == nil {
		gasPrice, err := e.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, "could not fetch gas price")
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      e.gasLimit,
			To:       &e.address,
			Data:     data,
		}), nil
	}

	tip, err := e.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, "could not fetch gas tip cap")
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       e.gasLimit,
		To:        &e.address,
		Data:      data,
	}), nil
}
