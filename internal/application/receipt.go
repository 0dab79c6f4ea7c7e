package application

import (
	"encoding/json"
	"fmt"
	"strings"

	"dspacegw/internal/domain"
)

const (
	ReceiptFormatEVM       = "evm"
	ReceiptFormatChaincode = "chaincode"
)

type ReceiptRenderer interface {
	Format() string
	Render(receipt domain.Receipt) string
}

func NewReceiptRenderer(format string) (ReceiptRenderer, error) {
	switch format {
	case ReceiptFormatEVM:
		return evmReceipt{}, nil
	case ReceiptFormatChaincode:
		return chaincodeReceipt{}, nil
	default:
		return nil, fmt.Errorf("unknown receipt format %q", format)
	}
}

type evmReceipt struct{}

func (evmReceipt) Format() string { return ReceiptFormatEVM }

func (evmReceipt) Render(r domain.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tx_hash: %s\n", r.TxHash)
	fmt.Fprintf(&b, "block_number: %d\n", r.BlockNumber)
	fmt.Fprintf(&b, "block_hash: %s\n", r.BlockHash)
	fmt.Fprintf(&b, "tx_index: %d\n", r.TxIndex)
	fmt.Fprintf(&b, "status: %s\n", r.Status)
	fmt.Fprintf(&b, "gas_used: %d\n", r.GasUsed)
	fmt.Fprintf(&b, "cumulative_gas_used: %d\n", r.CumulativeGasUsed)
	if r.ContractAddress != "" {
		fmt.Fprintf(&b, "contract_address: %s\n", r.ContractAddress)
	}
	if r.ErrorMessage != "" {
		fmt.Fprintf(&b, "error_message: %s\n", r.ErrorMessage)
	}
	if len(r.Logs) == 0 {
		b.WriteString("logs: []")
		return b.String()
	}
	b.WriteString("logs:")
	for _, log := range r.Logs {
		fmt.Fprintf(&b, "\n  - log_index: %d", log.LogIndex)
		fmt.Fprintf(&b, "\n    address: %s", log.Address)
		fmt.Fprintf(&b, "\n    topics: [%s]", strings.Join(log.Topics, ", "))
		fmt.Fprintf(&b, "\n    data: %s", log.Data)
	}
	return b.String()
}

type chaincodeReceipt struct{}

func (chaincodeReceipt) Format() string { return ReceiptFormatChaincode }

type chaincodeView struct {
	TxHash       string   `json:"tx_hash"`
	BlockNumber  uint64   `json:"block_number"`
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Events       []string `json:"events"`
}

func (chaincodeReceipt) Render(r domain.Receipt) string {
	view := chaincodeView{
		TxHash:       r.TxHash,
		BlockNumber:  r.BlockNumber,
		Status:       r.Status,
		ErrorMessage: r.ErrorMessage,
		Events:       make([]string, 0, len(r.Logs)),
	}
	for _, log := range r.Logs {
		view.Events = append(view.Events, log.Data)
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Sprintf("tx_hash=%s status=%s", r.TxHash, r.Status)
	}
	return string(payload)
}
