package gateway

import "encoding/json"

// Wire shapes for the payment gateway API. Every response is wrapped in an
// envelope whose meta carries SUCCESS/FAIL plus an error code on failure.

const (
	resultSuccess = "SUCCESS"
	resultFail    = "FAIL"
)

type apiMeta struct {
	Result    string `json:"result"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

type envelope struct {
	Meta apiMeta         `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type submitPayload struct {
	OrderID     string `json:"orderId"`
	CardType    string `json:"cardType"`
	CardNo      string `json:"cardNo"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callbackUrl"`
}

type transactionData struct {
	TransactionKey string `json:"transactionKey"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
}

type orderData struct {
	OrderID      string            `json:"orderId"`
	Transactions []transactionData `json:"transactions"`
}
