package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/model"
)

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" {
		writeJSON(w, http.StatusOK, s.app.Chart.ByType(model.AccountType(t)))
		return
	}
	writeJSON(w, http.StatusOK, s.app.Chart.All())
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var in model.Account
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.Chart.Add(in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.Chart.Save(s.app.Root); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "account.create", strconv.Itoa(in.ID), "", in.Name)
	writeJSON(w, http.StatusCreated, in)
}

type balanceResponse struct {
	AccountID int             `json:"account_id"`
	AsOf      string          `json:"as_of"`
	Balance   decimal.Decimal `json:"balance"`
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	accountID, _ := strconv.Atoi(mux.Vars(r)["id"])
	if !s.app.Chart.Exists(accountID) {
		s.respond(w, r, errNoRoute, fmt.Sprintf("account %d", accountID))
		return
	}
	asOf, err := s.asOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bal, err := s.app.Reports.AccountBalance(accountID, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, AsOf: asOf.Format(dateLayout), Balance: bal})
}

func (s *Server) listCostCenters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Chart.CostCenters())
}

func (s *Server) createCostCenter(w http.ResponseWriter, r *http.Request) {
	var in model.CostCenter
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.Chart.AddCostCenter(in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.Chart.Save(s.app.Root); err != nil {
		s.writeError(w, r, err)
		return
	}
	centers := s.app.Chart.CostCenters()
	created := centers[len(centers)-1]
	s.audit(r, "cost_center.create", created.Code, "", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

// listJournal returns legs in the period, optionally narrowed to one
// account, status or source.
func (s *Server) listJournal(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.period(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	accountID, err := queryInt(r, "account_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	legs, err := s.app.Journal.ReadRange(from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	status, source := model.EntryStatus(q.Get("status")), model.EntrySource(q.Get("source"))
	legs = slices.DeleteFunc(legs, func(l model.Leg) bool {
		return (accountID != 0 && l.AccountID != accountID) ||
			(status != "" && l.Status != status) ||
			(source != "" && l.Source != source)
	})
	if legs == nil {
		legs = []model.Leg{}
	}
	writeJSON(w, http.StatusOK, legs)
}

type legRequest struct {
	AccountID   int             `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	CostCenter  string          `json:"cost_center"`
	Description string          `json:"description"`
}

type entryRequest struct {
	Date         Date         `json:"date"`
	Description  string       `json:"description"`
	Counterparty string       `json:"counterparty"`
	Reference    string       `json:"reference"`
	Tags         string       `json:"tags"`
	Notes        string       `json:"notes"`
	Draft        bool         `json:"draft"`
	Legs         []legRequest `json:"legs"`
}

type entryResponse struct {
	EntryID string      `json:"entry_id"`
	Legs    []model.Leg `json:"legs"`
}

func (s *Server) createJournalEntry(w http.ResponseWriter, r *http.Request) {
	var in entryRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(in.Legs) < 2 {
		s.writeError(w, r, fmt.Errorf("%w: an entry needs at least two legs", errBadRequest))
		return
	}
	params := journal.EntryParams{
		Date:         in.Date.Time,
		Description:  in.Description,
		Counterparty: in.Counterparty,
		Reference:    in.Reference,
		Tags:         in.Tags,
		Notes:        in.Notes,
		Source:       model.SourceManual,
	}
	if params.Date.IsZero() {
		params.Date = s.now().UTC()
	}
	if in.Draft {
		params.Status = model.StatusDraft
	}
	for _, l := range in.Legs {
		params.Legs = append(params.Legs, journal.LegParams(l))
	}

	entryID, err := s.app.Post(params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	legs, err := s.app.Journal.Entry(entryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "journal.create", entryID, entryID, in.Description)
	writeJSON(w, http.StatusCreated, entryResponse{EntryID: entryID, Legs: legs})
}

func (s *Server) getJournalEntry(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["id"]
	legs, err := s.app.Journal.Entry(entryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{EntryID: legs[0].EntryGroup(), Legs: legs})
}

func (s *Server) reverseJournalEntry(w http.ResponseWriter, r *http.Request) {
	var in cancelRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	date := in.Date.Time
	if date.IsZero() {
		date = s.now().UTC()
	}
	entryID := mux.Vars(r)["id"]
	revID, err := s.app.Journal.Reverse(entryID, date, in.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	legs, err := s.app.Journal.Entry(revID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "journal.reverse", entryID, revID, in.Reason)
	writeJSON(w, http.StatusCreated, entryResponse{EntryID: revID, Legs: legs})
}

func (s *Server) approveJournalEntry(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["id"]
	if err := s.app.Journal.Approve(entryID); err != nil {
		s.writeError(w, r, err)
		return
	}
	legs, err := s.app.Journal.Entry(entryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "journal.approve", entryID, entryID, "")
	writeJSON(w, http.StatusOK, entryResponse{EntryID: legs[0].EntryGroup(), Legs: legs})
}
