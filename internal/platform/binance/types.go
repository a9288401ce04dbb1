package binance

type exchangeInfo struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol  string         `json:"symbol"`
	Status  string         `json:"status"`
	Filters []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType  string `json:"filterType"`
	StepSize    string `json:"stepSize,omitempty"`
	MinQty      string `json:"minQty,omitempty"`
	MinNotional string `json:"minNotional,omitempty"`
}

type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
