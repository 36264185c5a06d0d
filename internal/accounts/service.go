package accounts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/daftar-erp/daftar/internal/model"
)

const (
	chartFile       = "chart-of-accounts.csv"
	costCentersFile = "cost-centers.csv"
)

// ErrDuplicate is returned when adding an account or cost center that already exists.
var ErrDuplicate = errors.New("already exists")

// ErrInvalid is returned for accounts or cost centers that cannot be added.
var ErrInvalid = errors.New("invalid account")

// Service provides in-memory lookup over the chart of accounts and cost centers.
type Service struct {
	mu          sync.RWMutex
	accounts    []model.Account
	byID        map[int]model.Account
	costCenters []model.CostCenter
}

// NewService creates a Service from a slice of accounts and cost centers.
func NewService(accounts []model.Account, costCenters []model.CostCenter) *Service {
	byID := make(map[int]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID, costCenters: costCenters}
}

// Load reads the chart of accounts and cost centers from a repo root.
// A missing cost-centers.csv yields no cost centers.
func Load(repoRoot string) (*Service, error) {
	path := filepath.Join(repoRoot, "accounts", chartFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chart of accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart of accounts: %w", err)
	}

	var centers []model.CostCenter
	ccf, err := os.Open(filepath.Join(repoRoot, "accounts", costCentersFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("opening cost centers: %w", err)
	default:
		defer ccf.Close()
		centers, err = ReadCostCenters(ccf)
		if err != nil {
			return nil, fmt.Errorf("reading cost centers: %w", err)
		}
	}
	return NewService(accts, centers), nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Account(nil), s.accounts...)
}

// Get returns an account by ID.
func (s *Service) Get(id int) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id int) bool {
	_, ok := s.Get(id)
	return ok
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []model.Account
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Add appends an account to the chart.
func (s *Service) Add(acct model.Account) error {
	switch {
	case acct.ID <= 0:
		return fmt.Errorf("%w: account number must be positive", ErrInvalid)
	case strings.TrimSpace(acct.Name) == "":
		return fmt.Errorf("%w: account name is required", ErrInvalid)
	case !validType(acct.Type):
		return fmt.Errorf("%w: unknown account type %q", ErrInvalid, acct.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[acct.ID]; ok {
		return fmt.Errorf("account %d: %w", acct.ID, ErrDuplicate)
	}
	if acct.ParentID != 0 {
		if _, ok := s.byID[acct.ParentID]; !ok {
			return fmt.Errorf("%w: unknown parent account %d", ErrInvalid, acct.ParentID)
		}
	}
	s.accounts = append(s.accounts, acct)
	s.byID[acct.ID] = acct
	return nil
}

func validType(t model.AccountType) bool {
	switch t {
	case model.AccountTypeAsset, model.AccountTypeLiability, model.AccountTypeEquity,
		model.AccountTypeRevenue, model.AccountTypeExpense:
		return true
	}
	return false
}

// CostCenters returns all cost centers.
func (s *Service) CostCenters() []model.CostCenter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CostCenter(nil), s.costCenters...)
}

// CostCenterExists reports whether an active cost center with code exists.
func (s *Service) CostCenterExists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cc := range s.costCenters {
		if cc.Code == code && cc.Active {
			return true
		}
	}
	return false
}

// AddCostCenter registers a new cost center.
func (s *Service) AddCostCenter(cc model.CostCenter) error {
	cc.Code = strings.ToUpper(strings.TrimSpace(cc.Code))
	if cc.Code == "" {
		return fmt.Errorf("%w: cost center code is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.costCenters {
		if existing.Code == cc.Code {
			return fmt.Errorf("cost center %s: %w", cc.Code, ErrDuplicate)
		}
	}
	s.costCenters = append(s.costCenters, cc)
	return nil
}

// Save writes the chart and cost centers under <repoRoot>/accounts/.
func (s *Service) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, "accounts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(filepath.Join(dir, chartFile))
	if err != nil {
		return fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()
	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	ccf, err := os.Create(filepath.Join(dir, costCentersFile))
	if err != nil {
		return fmt.Errorf("creating cost centers file: %w", err)
	}
	defer ccf.Close()
	if err := WriteCostCenters(ccf, s.costCenters); err != nil {
		return fmt.Errorf("writing cost centers: %w", err)
	}
	return nil
}
