package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/daftar-erp/daftar/internal/model"
)

const (
	numFields  = 7
	colID      = 0
	colName    = 1
	colNameEN  = 2
	colType    = 3
	colParent  = 4
	colTaxLine = 5
	colDesc    = 6
)

const (
	ccNumFields = 3
	ccColCode   = 0
	ccColName   = 1
	ccColActive = 2
)

// ReadAccounts reads chart-of-accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes chart-of-accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"account_id", "account_name", "account_name_en", "account_type", "parent_id", "tax_line", "description"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = strconv.Itoa(acct.ID)
	row[colName] = acct.Name
	row[colNameEN] = acct.NameEN
	row[colType] = string(acct.Type)
	if acct.ParentID != 0 {
		row[colParent] = strconv.Itoa(acct.ParentID)
	}
	row[colTaxLine] = acct.TaxLine
	row[colDesc] = acct.Description
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := strconv.Atoi(record[colID])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing account_id %q: %w", record[colID], err)
	}

	var parentID int
	if record[colParent] != "" {
		parentID, err = strconv.Atoi(record[colParent])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing parent_id %q: %w", record[colParent], err)
		}
	}

	acctType := model.AccountType(record[colType])
	switch acctType {
	case model.AccountTypeAsset, model.AccountTypeLiability, model.AccountTypeEquity,
		model.AccountTypeRevenue, model.AccountTypeExpense:
	default:
		return model.Account{}, fmt.Errorf("unknown account_type %q", record[colType])
	}

	return model.Account{
		ID:          id,
		Name:        record[colName],
		NameEN:      record[colNameEN],
		Type:        acctType,
		ParentID:    parentID,
		TaxLine:     record[colTaxLine],
		Description: record[colDesc],
	}, nil
}

// ReadCostCenters reads cost-centers.csv.
func ReadCostCenters(r io.Reader) ([]model.CostCenter, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = ccNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading cost centers CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var centers []model.CostCenter
	for i, rec := range records[1:] {
		active, err := strconv.ParseBool(rec[ccColActive])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing active %q: %w", i+2, rec[ccColActive], err)
		}
		centers = append(centers, model.CostCenter{
			Code:   rec[ccColCode],
			Name:   rec[ccColName],
			Active: active,
		})
	}
	return centers, nil
}

// WriteCostCenters writes cost-centers.csv.
func WriteCostCenters(w io.Writer, centers []model.CostCenter) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"code", "name", "active"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, cc := range centers {
		if err := cw.Write([]string{cc.Code, cc.Name, strconv.FormatBool(cc.Active)}); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
