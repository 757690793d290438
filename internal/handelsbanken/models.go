package handelsbanken

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Amount is a monetary value. Content keeps the API's textual representation.
type Amount struct {
	Currency string `mapstructure:"currency" json:"currency"`
	Content  string `mapstructure:"content" json:"content"`
}

func (a *Amount) String() string {
	if a == nil {
		return ""
	}
	return a.Currency + " " + a.Content
}

// Balance is a typed balance attached to an account or a transaction.
type Balance struct {
	BalanceType string  `mapstructure:"balanceType" json:"balanceType"`
	Amount      *Amount `mapstructure:"amount" json:"amount"`
}

func (b *Balance) String() string {
	if b == nil {
		return ""
	}
	return b.BalanceType + ": " + b.Amount.String()
}

// Account is the typed view of an account record. Raw keeps the original record.
type Account struct {
	AccountID   string    `mapstructure:"accountId"`
	IBAN        string    `mapstructure:"iban"`
	BBAN        string    `mapstructure:"bban"`
	ClearingNo  string    `mapstructure:"clearingNumber"`
	Currency    string    `mapstructure:"currency"`
	Name        string    `mapstructure:"name"`
	OwnerName   string    `mapstructure:"ownerName"`
	AccountType string    `mapstructure:"accountType"`
	Balances    []Balance `mapstructure:"balances"`
	Raw         Record    `mapstructure:"-"`
}

// Transaction is the typed view of a transaction record. Raw keeps the original record.
type Transaction struct {
	Status                string   `mapstructure:"status"`
	Amount                *Amount  `mapstructure:"amount"`
	LedgerDate            string   `mapstructure:"ledgerDate"`
	TransactionDate       string   `mapstructure:"transactionDate"`
	CreditDebit           string   `mapstructure:"creditDebit"`
	RemittanceInformation string   `mapstructure:"remittanceInformation"`
	Balance               *Balance `mapstructure:"balance"`
	Raw                   Record   `mapstructure:"-"`
}

// DecodeAccounts converts the "accounts" list of a response into typed accounts.
func DecodeAccounts(doc Document) ([]Account, error) {
	records, err := doc.Records("accounts")
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(records))
	for i, rec := range records {
		var acct Account
		if err := decodeRecord(rec, &acct); err != nil {
			return nil, fmt.Errorf("decode accounts[%d]: %w", i, err)
		}
		acct.Raw = rec
		out = append(out, acct)
	}
	return out, nil
}

// DecodeTransactions converts the "transactions" list of a response into typed transactions.
func DecodeTransactions(doc Document) ([]Transaction, error) {
	records, err := doc.Records("transactions")
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(records))
	for i, rec := range records {
		var tx Transaction
		if err := decodeRecord(rec, &tx); err != nil {
			return nil, fmt.Errorf("decode transactions[%d]: %w", i, err)
		}
		tx.Raw = rec
		out = append(out, tx)
	}
	return out, nil
}

// decodeRecord is lenient about scalar types: amounts arrive as numbers or strings.
func decodeRecord(rec Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(rec))
}
