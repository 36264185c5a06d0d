// Package importer reads bank statement CSV exports and posts them to the
// ledger as draft entries awaiting classification.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/model"
)

// Parser converts a bank CSV file into BankTransactions.
type Parser interface {
	Parse(r io.Reader) ([]model.BankTransaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GenericParser{})
	r.Register(&AlRajhiParser{})
	return r
}

const (
	importDir    = "import"
	processedDir = "import/processed"
)

// Scan returns CSV files in <repoRoot>/import/.
func Scan(repoRoot string) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Ledger is where imported transactions are posted.
type Ledger interface {
	AddEntry(params journal.EntryParams) (string, error)
}

// Result summarizes one import.
type Result struct {
	EntryIDs []string
	Skipped  int // zero-amount lines
}

// Post books each transaction as a draft entry between bankAccount and
// suspense: money in debits the bank, money out credits it. Drafts stay out
// of reports until they are reclassified and approved.
func Post(ledger Ledger, txns []model.BankTransaction, bankAccount, suspense int) (Result, error) {
	var res Result
	for i, txn := range txns {
		if txn.Amount.IsZero() {
			res.Skipped++
			continue
		}
		amt := txn.Amount.Abs().Round(2)
		bank := journal.LegParams{AccountID: bankAccount}
		other := journal.LegParams{AccountID: suspense}
		if txn.Amount.IsPositive() {
			bank.Debit, other.Credit = amt, amt
		} else {
			bank.Credit, other.Debit = amt, amt
		}
		entryID, err := ledger.AddEntry(journal.EntryParams{
			Date:        txn.Date,
			Description: txn.Description,
			Legs:        []journal.LegParams{bank, other},
			Reference:   txn.Reference,
			Status:      model.StatusDraft,
			Source:      model.SourceImport,
			Tags:        txn.Type,
		})
		if err != nil {
			return res, fmt.Errorf("transaction %d (%s): %w", i+1, txn.Reference, err)
		}
		res.EntryIDs = append(res.EntryIDs, entryID)
	}
	return res, nil
}
