package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/id"
	"github.com/daftar-erp/daftar/internal/model"
)

var (
	// ErrEntryNotFound is returned when an entry ID has no legs on disk.
	ErrEntryNotFound = errors.New("journal entry not found")
	// ErrAlreadyReversed is returned when reversing an entry twice.
	ErrAlreadyReversed = errors.New("journal entry already reversed")
	// ErrNotDraft is returned when approving an entry that is not a draft.
	ErrNotDraft = errors.New("journal entry is not a draft")
	// ErrDraft is returned when reversing an entry that was never posted.
	ErrDraft = errors.New("journal entry is a draft")
)

// Service appends entries to the month journals and reads them back.
// All writes go through one mutex so sequence numbers never collide.
type Service struct {
	mu       sync.Mutex
	repoRoot string
	accounts AccountChecker
	centers  CostCenterChecker
}

// NewService creates a journal Service. centers may be nil.
func NewService(repoRoot string, accounts AccountChecker, centers CostCenterChecker) *Service {
	return &Service{repoRoot: repoRoot, accounts: accounts, centers: centers}
}

// LegParams is one side of an entry.
type LegParams struct {
	AccountID   int
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	CostCenter  string
	Description string // defaults to the entry description
}

// EntryParams holds parameters for a compound journal entry.
type EntryParams struct {
	Date         time.Time
	Description  string
	Legs         []LegParams
	Counterparty string
	Reference    string
	Status       model.EntryStatus // defaults to posted
	Source       model.EntrySource // defaults to manual
	Tags         string
	Notes        string
}

// AddEntry validates a balanced entry of two or more legs and appends it to
// the month's journal.csv. Returns the entry ID.
func (s *Service) AddEntry(params EntryParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEntry(params)
}

func (s *Service) addEntry(params EntryParams) (string, error) {
	if len(params.Legs) < 2 {
		return "", fmt.Errorf("entry needs at least 2 legs, got %d", len(params.Legs))
	}
	if params.Status == "" {
		params.Status = model.StatusPosted
	}
	if params.Source == "" {
		params.Source = model.SourceManual
	}

	year := params.Date.Year()
	month := int(params.Date.Month())

	existing, err := s.ReadMonth(year, month)
	if err != nil {
		return "", err
	}

	entryID := id.FormatEntryID(year, month, nextSeq(existing))
	newLegs := make([]model.Leg, len(params.Legs))
	for i, lp := range params.Legs {
		desc := lp.Description
		if desc == "" {
			desc = params.Description
		}
		newLegs[i] = model.Leg{
			EntryID:      id.FormatLegID(entryID, i),
			Date:         params.Date,
			AccountID:    lp.AccountID,
			Description:  desc,
			Debit:        lp.Debit,
			Credit:       lp.Credit,
			Counterparty: params.Counterparty,
			Reference:    params.Reference,
			CostCenter:   lp.CostCenter,
			Status:       params.Status,
			Source:       params.Source,
			Tags:         params.Tags,
			Notes:        params.Notes,
		}
	}

	allLegs := append(existing, newLegs...)
	if verrs := ValidateLegs(allLegs, s.accounts, s.centers, year, month); len(verrs) > 0 {
		return "", ValidationErrors(verrs)
	}

	journalPath := s.monthPath(year, month)
	if err := os.MkdirAll(filepath.Dir(journalPath), 0o755); err != nil {
		return "", fmt.Errorf("creating journal dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(journalPath); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(journalPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return "", fmt.Errorf("writing header: %w", err)
		}
	}

	if err := AppendLegs(f, newLegs); err != nil {
		return "", fmt.Errorf("appending legs: %w", err)
	}

	return entryID, nil
}

// AddDoubleParams holds parameters for a simple two-leg entry.
type AddDoubleParams struct {
	Date          time.Time
	Description   string
	DebitAccount  int
	CreditAccount int
	Amount        decimal.Decimal
	CostCenter    string // applied to the debit leg
	Counterparty  string
	Reference     string
	Status        model.EntryStatus
	Source        model.EntrySource
	Tags          string
	Notes         string
}

// AddDouble creates a balanced debit + credit entry.
func (s *Service) AddDouble(params AddDoubleParams) (string, error) {
	return s.AddEntry(EntryParams{
		Date:        params.Date,
		Description: params.Description,
		Legs: []LegParams{
			{AccountID: params.DebitAccount, Debit: params.Amount, CostCenter: params.CostCenter},
			{AccountID: params.CreditAccount, Credit: params.Amount},
		},
		Counterparty: params.Counterparty,
		Reference:    params.Reference,
		Status:       params.Status,
		Source:       params.Source,
		Tags:         params.Tags,
		Notes:        params.Notes,
	})
}

// Reverse posts the mirror image of entryID dated date and marks the
// original legs reversed. Returns the reversing entry's ID.
func (s *Service) Reverse(entryID string, date time.Time, reason string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID = id.EntryGroup(entryID)
	orig, err := s.entry(entryID)
	if err != nil {
		return "", err
	}
	for _, leg := range orig {
		switch leg.Status {
		case model.StatusReversed:
			return "", fmt.Errorf("%s: %w", entryID, ErrAlreadyReversed)
		case model.StatusDraft:
			return "", fmt.Errorf("%s: %w", entryID, ErrDraft)
		}
	}

	desc := "عكس قيد " + entryID
	if reason != "" {
		desc += ": " + reason
	}
	legs := make([]LegParams, len(orig))
	for i, leg := range orig {
		legs[i] = LegParams{
			AccountID:   leg.AccountID,
			Debit:       leg.Credit,
			Credit:      leg.Debit,
			CostCenter:  leg.CostCenter,
			Description: desc,
		}
	}

	revID, err := s.addEntry(EntryParams{
		Date:         date,
		Description:  desc,
		Legs:         legs,
		Counterparty: orig[0].Counterparty,
		Reference:    entryID,
		Source:       model.SourceReversal,
		Notes:        reason,
	})
	if err != nil {
		return "", fmt.Errorf("posting reversal of %s: %w", entryID, err)
	}

	if err := s.setStatus(entryID, model.StatusReversed); err != nil {
		return "", err
	}
	return revID, nil
}

// Approve turns a draft entry into a posted one.
func (s *Service) Approve(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID = id.EntryGroup(entryID)
	legs, err := s.entry(entryID)
	if err != nil {
		return err
	}
	if legs[0].Status != model.StatusDraft {
		return fmt.Errorf("%s: %w", entryID, ErrNotDraft)
	}
	return s.setStatus(entryID, model.StatusPosted)
}

// Entry returns the legs of one entry.
func (s *Service) Entry(entryID string) ([]model.Leg, error) {
	return s.entry(id.EntryGroup(entryID))
}

func (s *Service) entry(entryID string) ([]model.Leg, error) {
	year, month, _, err := id.ParseEntryID(entryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntryNotFound, err)
	}
	legs, err := s.ReadMonth(year, month)
	if err != nil {
		return nil, err
	}
	var out []model.Leg
	for _, leg := range legs {
		if leg.EntryGroup() == entryID {
			out = append(out, leg)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", entryID, ErrEntryNotFound)
	}
	return out, nil
}

// setStatus rewrites the month file with every leg of entryID set to status.
func (s *Service) setStatus(entryID string, status model.EntryStatus) error {
	year, month, _, err := id.ParseEntryID(entryID)
	if err != nil {
		return err
	}
	legs, err := s.ReadMonth(year, month)
	if err != nil {
		return err
	}
	for i := range legs {
		if legs[i].EntryGroup() == entryID {
			legs[i].Status = status
		}
	}

	path := s.monthPath(year, month)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".journal-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp journal: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteLegs(tmp, legs); err != nil {
		tmp.Close()
		return fmt.Errorf("rewriting journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing journal: %w", err)
	}
	return nil
}

// ReadMonth reads all legs for a given year/month.
func (s *Service) ReadMonth(year, month int) ([]model.Leg, error) {
	path := s.monthPath(year, month)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer f.Close()

	legs, err := ReadLegs(f)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}
	return legs, nil
}

// ReadRange reads all legs dated within [from, to], both inclusive.
func (s *Service) ReadRange(from, to time.Time) ([]model.Leg, error) {
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) {
		return nil, nil
	}

	var out []model.Leg
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(to) {
		legs, err := s.ReadMonth(cur.Year(), int(cur.Month()))
		if err != nil {
			return nil, err
		}
		for _, leg := range legs {
			d := truncateDay(leg.Date)
			if d.Before(from) || d.After(to) {
				continue
			}
			out = append(out, leg)
		}
		cur = cur.AddDate(0, 1, 0)
	}
	return out, nil
}

// ReadAll reads every month journal under the repo root in date order.
func (s *Service) ReadAll() ([]model.Leg, error) {
	matches, err := filepath.Glob(filepath.Join(s.repoRoot, "[0-9][0-9][0-9][0-9]", "[0-9][0-9]", "journal.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing journals: %w", err)
	}
	var out []model.Leg
	for _, path := range matches {
		rel, _ := filepath.Rel(s.repoRoot, filepath.Dir(path))
		parts := strings.Split(filepath.ToSlash(rel), "/")
		var year, month int
		if _, err := fmt.Sscanf(parts[0]+"-"+parts[1], "%d-%d", &year, &month); err != nil {
			continue
		}
		legs, err := s.ReadMonth(year, month)
		if err != nil {
			return nil, err
		}
		out = append(out, legs...)
	}
	return out, nil
}

// NextEntrySeq returns the next available sequence number for a month.
func (s *Service) NextEntrySeq(year, month int) (int, error) {
	legs, err := s.ReadMonth(year, month)
	if err != nil {
		return 0, err
	}
	return nextSeq(legs), nil
}

func nextSeq(legs []model.Leg) int {
	maxSeq := 0
	for _, leg := range legs {
		_, _, seq, err := id.ParseEntryID(leg.EntryID)
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}

func (s *Service) monthPath(year, month int) string {
	return filepath.Join(s.repoRoot, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "journal.csv")
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
