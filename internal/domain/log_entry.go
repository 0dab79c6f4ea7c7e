package domain

// LogEntry represents an event emitted while executing a transaction.
type LogEntry struct {
	Address  string
	Topics   []string
	Data     string
	LogIndex uint64
}
