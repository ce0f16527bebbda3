// Package ledger is a typed client for the ledger SDK living in the script
// environment. Each method renders one SDK call, waits for its envelope
// and decodes the payload into the matching result type.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/params"
)

// DefaultObject is the script global that exposes the SDK.
const DefaultObject = "bladeSdk"

// Client calls SDK functions over a bridge.
// Safe for concurrent use.
type Client struct {
	bridge  *bridge.Bridge
	object  string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithObject changes the script global the SDK is reached through.
func WithObject(name string) Option {
	return func(c *Client) {
		c.object = name
	}
}

// WithCallTimeout bounds every call. Calls still pending when it expires
// are evicted with a TIMEOUT error. Zero leaves calls bounded only by
// the caller's context.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Client over b.
func NewClient(b *bridge.Bridge, opts ...Option) *Client {
	c := &Client{bridge: b, object: DefaultObject}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Function returns the full script path of an SDK function.
func (c *Client) Function(name string) string {
	return c.object + "." + name
}

func invoke[T any](ctx context.Context, c *Client, name string, args ...any) (T, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return bridge.Invoke[T](ctx, c.bridge, bridge.Call{Function: c.Function(name), Args: args, Tag: name})
}

// InitParams are the arguments of the SDK's init call.
type InitParams struct {
	APIKey      string
	Network     string
	DAppCode    string
	Fingerprint string
}

// Init configures the SDK. It must succeed before any other call.
func (c *Client) Init(ctx context.Context, p InitParams) (InfoData, error) {
	return invoke[InfoData](ctx, c, "init", p.APIKey, p.Network, p.DAppCode, p.Fingerprint)
}

// Reinitializer returns a hook for runtime.Options.OnReady that repeats
// Init whenever the script environment comes up. It dispatches without
// waiting, since OnReady must not block.
func (c *Client) Reinitializer(p InitParams) func(epoch int64) {
	return func(epoch int64) {
		c.bridge.Dispatch(bridge.Call{
			Function: c.Function("init"),
			Args:     []any{p.APIKey, p.Network, p.DAppCode, p.Fingerprint},
			Tag:      "init",
		}, bridge.Expect(
			func(info InfoData) {
				slog.Info("sdk initialised", "epoch", epoch, "network", info.Network, "sdk_version", info.SDKVersion)
			},
			func(err error) {
				slog.Error("sdk init failed", "epoch", epoch, "error", err)
			},
		))
	}
}

// GetInfo returns the SDK's configuration.
func (c *Client) GetInfo(ctx context.Context) (InfoData, error) {
	return invoke[InfoData](ctx, c, "getInfo")
}

// GetBalance returns the balances of accountID.
func (c *Client) GetBalance(ctx context.Context, accountID string) (BalanceData, error) {
	if err := checkAccount("accountID", accountID); err != nil {
		return BalanceData{}, err
	}
	return invoke[BalanceData](ctx, c, "getBalance", accountID)
}

// TransferHbars sends amount (decimal text) from accountID to receiverID.
func (c *Client) TransferHbars(ctx context.Context, accountID, privateKey, receiverID, amount string) (TransactionReceiptData, error) {
	if err := checkAccounts("accountID", accountID, "receiverID", receiverID); err != nil {
		return TransactionReceiptData{}, err
	}
	if err := checkAmount(amount); err != nil {
		return TransactionReceiptData{}, err
	}
	return invoke[TransactionReceiptData](ctx, c, "transferHbars", accountID, privateKey, receiverID, amount)
}

// TransferTokens sends amount of tokenID. With freeTransfer the service
// pays the fee.
func (c *Client) TransferTokens(ctx context.Context, tokenID, accountID, privateKey, receiverID, amount string, freeTransfer bool) (TransactionReceiptData, error) {
	if err := checkAccounts("tokenID", tokenID, "accountID", accountID, "receiverID", receiverID); err != nil {
		return TransactionReceiptData{}, err
	}
	if err := checkAmount(amount); err != nil {
		return TransactionReceiptData{}, err
	}
	return invoke[TransactionReceiptData](ctx, c, "transferTokens", tokenID, accountID, privateKey, receiverID, amount, freeTransfer)
}

// CreateAccount creates an account bound to deviceID. The result may be
// pending; see GetPendingAccount.
func (c *Client) CreateAccount(ctx context.Context, deviceID string) (CreatedAccountData, error) {
	return invoke[CreatedAccountData](ctx, c, "createAccount", deviceID)
}

// GetPendingAccount polls a queued account creation.
func (c *Client) GetPendingAccount(ctx context.Context, transactionID, seedPhrase string) (CreatedAccountData, error) {
	return invoke[CreatedAccountData](ctx, c, "getPendingAccount", transactionID, seedPhrase)
}

// DeleteAccountParams are the arguments of DeleteAccount.
type DeleteAccountParams struct {
	DeleteAccountID    string
	DeletePrivateKey   string
	TransferAccountID  string
	OperatorAccountID  string
	OperatorPrivateKey string
}

// DeleteAccount deletes an account, moving its balance to TransferAccountID.
func (c *Client) DeleteAccount(ctx context.Context, p DeleteAccountParams) (TransactionReceiptData, error) {
	err := checkAccounts(
		"deleteAccountID", p.DeleteAccountID,
		"transferAccountID", p.TransferAccountID,
		"operatorAccountID", p.OperatorAccountID,
	)
	if err != nil {
		return TransactionReceiptData{}, err
	}
	return invoke[TransactionReceiptData](ctx, c, "deleteAccount",
		p.DeleteAccountID, p.DeletePrivateKey, p.TransferAccountID, p.OperatorAccountID, p.OperatorPrivateKey)
}

// GetAccountInfo returns account details.
func (c *Client) GetAccountInfo(ctx context.Context, accountID string) (AccountInfoData, error) {
	if err := checkAccount("accountID", accountID); err != nil {
		return AccountInfoData{}, err
	}
	return invoke[AccountInfoData](ctx, c, "getAccountInfo", accountID)
}

// GetKeysFromMnemonic recovers keys. With lookupNames the SDK also looks
// up the accounts owning the key.
func (c *Client) GetKeysFromMnemonic(ctx context.Context, mnemonic string, lookupNames bool) (PrivateKeyData, error) {
	return invoke[PrivateKeyData](ctx, c, "getKeysFromMnemonic", mnemonic, lookupNames)
}

// Sign signs message with privateKey.
func (c *Client) Sign(ctx context.Context, message, privateKey string) (SignMessageData, error) {
	return invoke[SignMessageData](ctx, c, "sign", message, privateKey)
}

// SignVerify checks a signature against publicKey.
func (c *Client) SignVerify(ctx context.Context, message, signature, publicKey string) (SignVerifyMessageData, error) {
	return invoke[SignVerifyMessageData](ctx, c, "signVerify", message, signature, publicKey)
}

// HethersSign signs message with the EVM-compatible scheme.
func (c *Client) HethersSign(ctx context.Context, message, privateKey string) (SignMessageData, error) {
	return invoke[SignMessageData](ctx, c, "hethersSign", message, privateKey)
}

// SplitSignature splits an ECDSA signature into v, r and s.
func (c *Client) SplitSignature(ctx context.Context, signature string) (SplitSignatureData, error) {
	return invoke[SplitSignatureData](ctx, c, "splitSignature", signature)
}

// GetParamsSignature signs a parameter list.
func (c *Client) GetParamsSignature(ctx context.Context, l params.List, privateKey string) (SplitSignatureData, error) {
	return invoke[SplitSignatureData](ctx, c, "getParamsSignature", l, privateKey)
}

// ContractCall describes a contract function call.
type ContractCall struct {
	ContractID  string
	Function    string
	Params      params.List
	AccountID   string
	PrivateKey  string
	Gas         int
	BladePayFee bool
}

func (cc ContractCall) check() error {
	if err := checkAccounts("contractID", cc.ContractID, "accountID", cc.AccountID); err != nil {
		return err
	}
	if cc.Gas <= 0 {
		return &bridge.Error{Code: bridge.ErrCodeEncoding, Message: fmt.Sprintf("gas must be positive, got %d", cc.Gas)}
	}
	return nil
}

// ContractCallFunction executes a state-changing contract call.
func (c *Client) ContractCallFunction(ctx context.Context, cc ContractCall) (TransactionReceiptData, error) {
	if err := cc.check(); err != nil {
		return TransactionReceiptData{}, err
	}
	return invoke[TransactionReceiptData](ctx, c, "contractCallFunction",
		cc.ContractID, cc.Function, cc.Params, cc.AccountID, cc.PrivateKey, cc.Gas, cc.BladePayFee)
}

// ContractCallQueryFunction executes a read-only contract call and decodes
// the result as returnTypes.
func (c *Client) ContractCallQueryFunction(ctx context.Context, cc ContractCall, returnTypes []string) (ContractQueryData, error) {
	if err := cc.check(); err != nil {
		return ContractQueryData{}, err
	}
	if returnTypes == nil {
		returnTypes = []string{}
	}
	return invoke[ContractQueryData](ctx, c, "contractCallQueryFunction",
		cc.ContractID, cc.Function, cc.Params, cc.AccountID, cc.PrivateKey, cc.Gas, cc.BladePayFee, returnTypes)
}

// GetTransactions returns one page of history. An empty transactionType
// matches all types; nextPage continues a previous listing.
func (c *Client) GetTransactions(ctx context.Context, accountID, transactionType, nextPage string, limit int) (TransactionsHistoryData, error) {
	if err := checkAccount("accountID", accountID); err != nil {
		return TransactionsHistoryData{}, err
	}
	return invoke[TransactionsHistoryData](ctx, c, "getTransactions", accountID, transactionType, nextPage, strconv.Itoa(limit))
}

// GetC14URL returns a payment widget URL for buying amount of asset.
func (c *Client) GetC14URL(ctx context.Context, asset, account, amount string) (IntegrationURLData, error) {
	if amount != "" {
		if err := checkAmount(amount); err != nil {
			return IntegrationURLData{}, err
		}
	}
	return invoke[IntegrationURLData](ctx, c, "getC14url", asset, account, amount)
}

func checkAccount(field, id string) error {
	if _, err := params.ParseAccountID(id); err != nil {
		return &bridge.Error{Code: bridge.ErrCodeEncoding, Message: "invalid " + field, Err: err}
	}
	return nil
}

// checkAccounts takes alternating field names and ids.
func checkAccounts(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := checkAccount(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

var decimalAmount = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

func checkAmount(amount string) error {
	if !decimalAmount.MatchString(amount) {
		return &bridge.Error{Code: bridge.ErrCodeEncoding, Message: fmt.Sprintf("amount %q is not a non-negative decimal", amount)}
	}
	return nil
}
