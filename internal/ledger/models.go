package ledger

import "encoding/json"

// InfoData describes the initialised SDK.
type InfoData struct {
	APIKey         string `json:"apiKey"`
	DAppCode       string `json:"dAppCode"`
	Network        string `json:"network"`
	VisitorID      string `json:"visitorId"`
	SDKEnvironment string `json:"sdkEnvironment"`
	SDKVersion     string `json:"sdkVersion"`
	Nonce          int    `json:"nonce"`
}

// BalanceData is an account's native and token balances.
type BalanceData struct {
	Hbars  float64        `json:"hbars"`
	Tokens []TokenBalance `json:"tokens"`
}

// TokenBalance is the balance of one token.
type TokenBalance struct {
	Balance float64 `json:"balance"`
	TokenID string  `json:"tokenId"`
}

// PrivateKeyData is a key pair recovered from a mnemonic.
type PrivateKeyData struct {
	PrivateKey string   `json:"privateKey"`
	PublicKey  string   `json:"publicKey"`
	Accounts   []string `json:"accounts"`
	EVMAddress string   `json:"evmAddress"`
}

// SignMessageData is a signature.
type SignMessageData struct {
	SignedMessage string `json:"signedMessage"`
}

// SignVerifyMessageData reports a signature check.
type SignVerifyMessageData struct {
	Valid bool `json:"valid"`
}

// CreatedAccountData describes an account that was created or queued.
// AccountID and TransactionID are absent while the account is pending.
type CreatedAccountData struct {
	SeedPhrase    string  `json:"seedPhrase"`
	PublicKey     string  `json:"publicKey"`
	PrivateKey    string  `json:"privateKey"`
	AccountID     *string `json:"accountId"`
	EVMAddress    string  `json:"evmAddress"`
	TransactionID *string `json:"transactionId"`
	Status        string  `json:"status"`
	QueueNumber   *int    `json:"queueNumber"`
}

// AccountInfoData describes an existing account.
type AccountInfoData struct {
	AccountID            string      `json:"accountId"`
	EVMAddress           string      `json:"evmAddress"`
	CalculatedEVMAddress string      `json:"calculatedEvmAddress"`
	PublicKey            string      `json:"publicKey"`
	StakingInfo          StakingInfo `json:"stakingInfo"`
}

// StakingInfo is an account's staking state.
type StakingInfo struct {
	PendingReward    int64   `json:"pendingReward"`
	StakedNodeID     *int64  `json:"stakedNodeId"`
	StakePeriodStart *string `json:"stakePeriodStart"`
}

// TransactionReceiptData is the receipt of a submitted transaction.
type TransactionReceiptData struct {
	Status              string   `json:"status"`
	ContractID          *string  `json:"contractId"`
	TopicSequenceNumber *string  `json:"topicSequenceNumber"`
	TotalSupply         *string  `json:"totalSupply"`
	Serials             []string `json:"serials"`
}

// ContractQueryData is the decoded result of a read-only contract call.
type ContractQueryData struct {
	GasUsed int                   `json:"gasUsed"`
	Values  []ContractQueryRecord `json:"values"`
}

// ContractQueryRecord is one returned value with its ABI type.
type ContractQueryRecord struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SplitSignatureData is an ECDSA signature split into v, r and s.
type SplitSignatureData struct {
	V int    `json:"v"`
	R string `json:"r"`
	S string `json:"s"`
}

// TransactionsHistoryData is one page of account history.
type TransactionsHistoryData struct {
	NextPage     *string                    `json:"nextPage"`
	Transactions []TransactionHistoryDetail `json:"transactions"`
}

// TransactionHistoryDetail is one transaction in a history page.
type TransactionHistoryDetail struct {
	Fee                float64                         `json:"fee"`
	Memo               string                          `json:"memo"`
	NftTransfers       []TransactionHistoryNftTransfer `json:"nftTransfers"`
	Time               string                          `json:"time"`
	TransactionID      string                          `json:"transactionId"`
	Transfers          []TransactionHistoryTransfer    `json:"transfers"`
	Type               string                          `json:"type"`
	PlainData          *TransactionHistoryPlainData    `json:"plainData"`
	ConsensusTimestamp string                          `json:"consensusTimestamp"`
}

// TransactionHistoryPlainData summarises a token transfer.
// Amounts keep the script's decimal text.
type TransactionHistoryPlainData struct {
	Type      string      `json:"type"`
	TokenID   string      `json:"token_id"`
	Amount    json.Number `json:"amount"`
	Senders   []string    `json:"senders"`
	Receivers []string    `json:"receivers"`
}

// TransactionHistoryTransfer is one balance movement.
type TransactionHistoryTransfer struct {
	Account    string      `json:"account"`
	Amount     json.Number `json:"amount"`
	IsApproval bool        `json:"is_approval"`
}

// TransactionHistoryNftTransfer is one NFT movement.
type TransactionHistoryNftTransfer struct {
	IsApproval        bool   `json:"is_approval"`
	ReceiverAccountID string `json:"receiver_account_id"`
	SenderAccountID   string `json:"sender_account_id"`
	SerialNumber      int    `json:"serial_number"`
	TokenID           string `json:"token_id"`
}

// IntegrationURLData is a payment widget URL.
type IntegrationURLData struct {
	URL string `json:"url"`
}
