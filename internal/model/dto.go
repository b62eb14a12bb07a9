package model

// Request payloads for the v1 API. Amounts are micro-units (1 USDC = 1e6).

type IssueProfileRequest struct {
	Investor     string `json:"investor" binding:"required"`
	Tier         string `json:"tier" binding:"required"`
	ValidityDays int    `json:"validity_days" binding:"required"`
	Jurisdiction string `json:"jurisdiction"`
	IdentityHash string `json:"identity_hash"`
}

type UpgradeTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

type RevokeProfileRequest struct {
	Reason string `json:"reason"`
}

type RecordInvestmentRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

type InitializePoolRequest struct {
	ID                   string `json:"id" binding:"required"`
	FaceValue            uint64 `json:"face_value" binding:"required"`
	NumberOfInvoices     uint64 `json:"number_of_invoices"`
	WeightedMaturityDays uint64 `json:"weighted_maturity_days"`
	ExpectedYieldBps     uint64 `json:"expected_yield_bps"`
}

type UpdateNAVRequest struct {
	NAVPerToken uint64 `json:"nav_per_token" binding:"required"`
}

type RecordCashFlowRequest struct {
	Amount       uint64 `json:"amount" binding:"required"`
	InvoicesPaid uint64 `json:"invoices_paid"`
}

type RecordDefaultRequest struct {
	Amount    uint64 `json:"amount" binding:"required"`
	InvoiceID string `json:"invoice_id"`
}

type MintRequest struct {
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

type BurnRequest struct {
	From   string `json:"from" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

type TransferRequest struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

type TransferFromRequest struct {
	Spender string `json:"spender" binding:"required"`
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

type ApproveRequest struct {
	Owner   string `json:"owner" binding:"required"`
	Spender string `json:"spender" binding:"required"`
	Amount  uint64 `json:"amount"`
}

type SetWhitelistRequest struct {
	Address string `json:"address" binding:"required"`
	Allowed bool   `json:"allowed"`
}

type AmountRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

type SetPausedRequest struct {
	Paused bool `json:"paused"`
}
