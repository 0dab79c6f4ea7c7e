package domain

const (
	ReceiptStatusSuccess = "success"
	ReceiptStatusFailure = "failure"
)

// Receipt represents the outcome of a submitted transaction.
type Receipt struct {
	TxHash            string
	BlockNumber       uint64
	BlockHash         string
	TxIndex           uint64
	Status            string
	CumulativeGasUsed uint64
	GasUsed           uint64
	ContractAddress   string
	ErrorMessage      string
	Logs              []LogEntry
}
