// Package domain models payment attempts against the gateway: the outcome of
// a submission and the transaction records the gateway keeps per order.
package domain

// CardType enumerates the card networks the gateway accepts.
type CardType string

const (
	CardSamsung CardType = "SAMSUNG"
	CardKB      CardType = "KB"
	CardHyundai CardType = "HYUNDAI"
)

// Valid reports whether the card type is one the gateway accepts.
func (c CardType) Valid() bool {
	switch c {
	case CardSamsung, CardKB, CardHyundai:
		return true
	}
	return false
}

// AttemptResult is the outcome of one payment submission. It is a closed set:
// exactly one of Success, BusinessFailure, TransientFailure, or CircuitOpen.
type AttemptResult interface {
	attemptResult()
}

// Success means the gateway accepted the charge for asynchronous approval.
type Success struct {
	TransactionKey string
}

// BusinessFailure is a definitive decline (limit exceeded, invalid card).
// Retrying cannot change the answer.
type BusinessFailure struct {
	Code    string
	Message string
}

// TransientFailure is an infrastructure fault: timeout, connection error,
// 5xx. The true payment state is unknown.
type TransientFailure struct {
	Cause   error
	Timeout bool
}

// CircuitOpen means the breaker rejected the call before any network I/O.
type CircuitOpen struct{}

func (Success) attemptResult()          {}
func (BusinessFailure) attemptResult()  {}
func (TransientFailure) attemptResult() {}
func (CircuitOpen) attemptResult()      {}

// TxStatus is the gateway-side state of one transaction.
type TxStatus string

const (
	TxPending TxStatus = "PENDING"
	TxSuccess TxStatus = "SUCCESS"
	TxFailed  TxStatus = "FAILED"
)

// TransactionRecord is one gateway transaction for an order.
type TransactionRecord struct {
	TransactionKey string
	Status         TxStatus
	Reason         string
}

// Latest returns the most recent transaction record, which is authoritative
// for the order's payment state. The gateway appends in submission order.
func Latest(records []TransactionRecord) (TransactionRecord, bool) {
	if len(records) == 0 {
		return TransactionRecord{}, false
	}
	return records[len(records)-1], true
}
