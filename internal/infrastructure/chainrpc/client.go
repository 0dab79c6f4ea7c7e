// Package chainrpc talks JSON-RPC 2.0 to the ledger and execution endpoints.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dspacegw/internal/domain"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrReceiptNotFound = domain.ErrReceiptNotFound
	ErrNoSigner        = errors.New("client has no signing account")

	errNullResult = errors.New("rpc result is null")
)

const defaultGasLimit = 3_000_000

type Config struct {
	LedgerURL       string
	ExecutorURL     string
	Signer          domain.Signer
	DefaultGasLimit uint64
	HTTPClient      *http.Client
}

// Client implements call, send and receipt lookups for a single signing account.
type Client struct {
	ledger     *endpoint
	executor   *endpoint
	signer     domain.Signer
	defaultGas uint64

	chainMu sync.Mutex
	chainID *big.Int

	nonceMu   sync.Mutex
	nextNonce uint64
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.LedgerURL) == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	if strings.TrimSpace(cfg.ExecutorURL) == "" {
		return nil, errors.New("executor rpc url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.DefaultGasLimit == 0 {
		cfg.DefaultGasLimit = defaultGasLimit
	}
	return &Client{
		ledger:     &endpoint{url: NormalizeEndpoint(cfg.LedgerURL), httpClient: httpClient},
		executor:   &endpoint{url: NormalizeEndpoint(cfg.ExecutorURL), httpClient: httpClient},
		signer:     cfg.Signer,
		defaultGas: cfg.DefaultGasLimit,
	}, nil
}

// NormalizeEndpoint prefixes scheme-less host:port addresses with http://.
func NormalizeEndpoint(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}

func (c *Client) Call(ctx context.Context, from []byte, to domain.Address, data domain.Payload) ([]byte, error) {
	msg := map[string]any{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	if len(from) > 0 {
		msg["from"] = hexutil.Encode(from)
	}
	var result hexutil.Bytes
	if err := c.executor.call(ctx, "eth_call", []any{msg, "latest"}, &result); err != nil {
		return nil, fmt.Errorf("eth_call: %w", err)
	}
	return result, nil
}

// Send signs a transaction with the client's account and submits it to the
// ledger. Nonce reservation and submission are serialized per client.
func (c *Client) Send(ctx context.Context, to domain.Address, data domain.Payload, value domain.Value) ([]byte, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	gasPrice := c.gasPrice(ctx)
	gas := c.estimateGas(ctx, to, data, value)

	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, err := c.pendingNonce(ctx)
	if err != nil {
		return nil, err
	}
	if c.nextNonce > nonce {
		nonce = c.nextNonce
	}

	signed, err := c.signer.SignTransaction(domain.UnsignedTx{
		ChainID:  chainID,
		Nonce:    nonce,
		To:       to,
		Data:     data,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	var hash hexutil.Bytes
	if err := c.ledger.call(ctx, "eth_sendRawTransaction", []any{hexutil.Encode(signed.Raw)}, &hash); err != nil {
		// The node may have dropped earlier submissions; the next Send re-syncs
		// from the pending count.
		c.nextNonce = 0
		return nil, fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	c.nextNonce = nonce + 1
	if len(hash) == 0 {
		return signed.Hash, nil
	}
	return hash, nil
}

func (c *Client) GetReceipt(ctx context.Context, hash domain.TxHash) (domain.Receipt, error) {
	var result rpcReceipt
	if err := c.executor.call(ctx, "eth_getTransactionReceipt", []any{hash.Hex()}, &result); err != nil {
		if errors.Is(err, errNullResult) {
			return domain.Receipt{}, fmt.Errorf("%w: %s", ErrReceiptNotFound, hash.Hex())
		}
		return domain.Receipt{}, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	return result.toDomain(), nil
}

// ChainID is fetched once and cached for the life of the client.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	var result hexutil.Big
	if err := c.ledger.call(ctx, "eth_chainId", []any{}, &result); err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	c.chainID = result.ToInt()
	return new(big.Int).Set(c.chainID), nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.ledger.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return uint64(result), nil
}

// Ping checks that the ledger endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.BlockNumber(ctx)
	return err
}

func (c *Client) pendingNonce(ctx context.Context) (uint64, error) {
	addr := c.signer.Address()
	var result hexutil.Uint64
	if err := c.ledger.call(ctx, "eth_getTransactionCount", []any{addr.Hex(), "pending"}, &result); err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount: %w", err)
	}
	return uint64(result), nil
}

// gasPrice falls back to zero for nodes that do not price gas.
func (c *Client) gasPrice(ctx context.Context) *big.Int {
	var result hexutil.Big
	if err := c.ledger.call(ctx, "eth_gasPrice", []any{}, &result); err != nil {
		return new(big.Int)
	}
	return result.ToInt()
}

func (c *Client) estimateGas(ctx context.Context, to domain.Address, data domain.Payload, value domain.Value) uint64 {
	addr := c.signer.Address()
	msg := map[string]any{
		"from":  addr.Hex(),
		"to":    to.Hex(),
		"data":  hexutil.Encode(data),
		"value": hexutil.EncodeBig(value.Big()),
	}
	var result hexutil.Uint64
	if err := c.executor.call(ctx, "eth_estimateGas", []any{msg}, &result); err != nil || result == 0 {
		return c.defaultGas
	}
	return uint64(result)
}

type rpcReceipt struct {
	TxHash            string         `json:"transactionHash"`
	BlockNumber       hexutil.Uint64 `json:"blockNumber"`
	BlockHash         string         `json:"blockHash"`
	TxIndex           hexutil.Uint64 `json:"transactionIndex"`
	Status            string         `json:"status"`
	CumulativeGasUsed hexutil.Uint64 `json:"cumulativeGasUsed"`
	GasUsed           hexutil.Uint64 `json:"gasUsed"`
	ContractAddress   *string        `json:"contractAddress"`
	ErrorMessage      string         `json:"errorMessage"`
	Logs              []rpcLog       `json:"logs"`
}

type rpcLog struct {
	Address  string         `json:"address"`
	Topics   []string       `json:"topics"`
	Data     string         `json:"data"`
	LogIndex hexutil.Uint64 `json:"logIndex"`
}

func (r rpcReceipt) toDomain() domain.Receipt {
	receipt := domain.Receipt{
		TxHash:            strings.ToLower(r.TxHash),
		BlockNumber:       uint64(r.BlockNumber),
		BlockHash:         strings.ToLower(r.BlockHash),
		TxIndex:           uint64(r.TxIndex),
		Status:            receiptStatus(r.Status),
		CumulativeGasUsed: uint64(r.CumulativeGasUsed),
		GasUsed:           uint64(r.GasUsed),
		ErrorMessage:      r.ErrorMessage,
		Logs:              make([]domain.LogEntry, 0, len(r.Logs)),
	}
	if r.ContractAddress != nil {
		receipt.ContractAddress = strings.ToLower(*r.ContractAddress)
	}
	for _, log := range r.Logs {
		receipt.Logs = append(receipt.Logs, domain.LogEntry{
			Address:  strings.ToLower(log.Address),
			Topics:   log.Topics,
			Data:     log.Data,
			LogIndex: uint64(log.LogIndex),
		})
	}
	return receipt
}

// receiptStatus maps the numeric EVM status codes and passes anything else through.
func receiptStatus(status string) string {
	switch strings.ToLower(status) {
	case "0x1", "1":
		return domain.ReceiptStatusSuccess
	case "0x0", "0":
		return domain.ReceiptStatusFailure
	default:
		return status
	}
}

type endpoint struct {
	url        string
	httpClient *http.Client
	idCounter  uint64
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *endpoint) call(ctx context.Context, method string, params []any, result any) error {
	id := atomic.AddUint64(&e.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return errNullResult
	}
	return json.Unmarshal(decoded.Result, result)
}
