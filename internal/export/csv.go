package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samvad-hq/handelsbanken-explorer/internal/handelsbanken"
)

// Header is the first row of every export.
var Header = []string{
	"Account ID",
	"Owner Name",
	"Status",
	"Amount",
	"Ledger Date",
	"Transaction Date",
	"Credit/Debit",
	"Remittance Information",
	"Balance",
}

// Row flattens one transaction of acct into CSV columns. Missing fields are empty.
func Row(acct handelsbanken.Account, tx handelsbanken.Transaction) []string {
	return []string{
		acct.AccountID,
		acct.OwnerName,
		tx.Status,
		tx.Amount.String(),
		tx.LedgerDate,
		tx.TransactionDate,
		tx.CreditDebit,
		tx.RemittanceInformation,
		tx.Balance.String(),
	}
}

// Writer writes transaction rows as CSV, flushing after each row.
type Writer struct {
	csv    *csv.Writer
	closer io.Closer
	rows   int
}

// NewWriter writes the header to w and returns a Writer for the rows.
func NewWriter(w io.Writer) (*Writer, error) {
	return newWriter(w, true)
}

func newWriter(w io.Writer, header bool) (*Writer, error) {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(Header); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	out := &Writer{csv: cw}
	if c, ok := w.(io.Closer); ok {
		out.closer = c
	}
	return out, nil
}

// Create truncates (or creates) the file at path and writes the header.
func Create(path string) (*Writer, error) {
	return open(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// Append opens the file at path for appending, creating it if needed. The header
// is written only when the file is empty, so earlier exports are kept.
func Append(path string) (*Writer, error) {
	return open(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func open(path string, flag int) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat output file: %w", err)
	}
	w, err := newWriter(f, info.Size() == 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends the row for one transaction.
func (w *Writer) Write(acct handelsbanken.Account, tx handelsbanken.Transaction) error {
	if err := w.csv.Write(Row(acct, tx)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of transaction rows written, header excluded.
func (w *Writer) Rows() int { return w.rows }

// Close flushes pending data and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
