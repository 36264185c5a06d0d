package accounts

import "github.com/daftar-erp/daftar/internal/model"

// Well-known account IDs of the default chart. The ledger mapping in daftar.yaml
// points at these unless the business renumbers its chart.
const (
	Cash                   = 1010
	Bank                   = 1020
	Receivable             = 1100
	Inventory              = 1200
	VATInput               = 1300
	Payable                = 2100
	VATOutput              = 2200
	SocialInsurancePayable = 2300
	SalariesPayable        = 2400
	Capital                = 3010
	RetainedEarnings       = 3020
	Suspense               = 3900
	Sales                  = 4010
	ServiceRevenue         = 4020
	COGS                   = 5010
	Salaries               = 5020
	Rent                   = 5030
	Utilities              = 5040
	Marketing              = 5050
	Administrative         = 5060
	InventoryAdjustment    = 5090
)

// DefaultChart returns the default chart of accounts for an entity type.
func DefaultChart(entityType string) []model.Account {
	chart := tradingChart()
	if entityType == "services" {
		// Service businesses carry no stock.
		out := chart[:0:0]
		for _, a := range chart {
			if a.ID == Inventory || a.ID == COGS || a.ID == InventoryAdjustment {
				continue
			}
			out = append(out, a)
		}
		return out
	}
	return chart
}

func tradingChart() []model.Account {
	return []model.Account{
		{ID: Cash, Name: "الصندوق", NameEN: "Cash on Hand", Type: model.AccountTypeAsset},
		{ID: Bank, Name: "البنك", NameEN: "Bank", Type: model.AccountTypeAsset, Description: "الحساب الجاري"},
		{ID: Receivable, Name: "ذمم العملاء", NameEN: "Accounts Receivable", Type: model.AccountTypeAsset},
		{ID: Inventory, Name: "المخزون", NameEN: "Inventory", Type: model.AccountTypeAsset},
		{ID: VATInput, Name: "ضريبة القيمة المضافة - المدخلات", NameEN: "VAT Input", Type: model.AccountTypeAsset, TaxLine: "vat_input"},
		{ID: Payable, Name: "ذمم الموردين", NameEN: "Accounts Payable", Type: model.AccountTypeLiability},
		{ID: VATOutput, Name: "ضريبة القيمة المضافة - المخرجات", NameEN: "VAT Output", Type: model.AccountTypeLiability, TaxLine: "vat_output"},
		{ID: SocialInsurancePayable, Name: "التأمينات الاجتماعية المستحقة", NameEN: "Social Insurance Payable", Type: model.AccountTypeLiability},
		{ID: SalariesPayable, Name: "رواتب مستحقة", NameEN: "Salaries Payable", Type: model.AccountTypeLiability},
		{ID: Capital, Name: "رأس المال", NameEN: "Owner's Capital", Type: model.AccountTypeEquity},
		{ID: RetainedEarnings, Name: "الأرباح المبقاة", NameEN: "Retained Earnings", Type: model.AccountTypeEquity},
		{ID: Suspense, Name: "حساب معلق", NameEN: "Suspense", Type: model.AccountTypeEquity, Description: "حركات بنكية غير مصنفة"},
		{ID: Sales, Name: "المبيعات", NameEN: "Sales", Type: model.AccountTypeRevenue},
		{ID: ServiceRevenue, Name: "إيرادات الخدمات", NameEN: "Service Revenue", Type: model.AccountTypeRevenue},
		{ID: COGS, Name: "تكلفة البضاعة المباعة", NameEN: "Cost of Goods Sold", Type: model.AccountTypeExpense},
		{ID: Salaries, Name: "الرواتب والأجور", NameEN: "Salaries & Wages", Type: model.AccountTypeExpense},
		{ID: Rent, Name: "الإيجار", NameEN: "Rent", Type: model.AccountTypeExpense},
		{ID: Utilities, Name: "الكهرباء والمياه", NameEN: "Utilities", Type: model.AccountTypeExpense},
		{ID: Marketing, Name: "التسويق والإعلان", NameEN: "Marketing", Type: model.AccountTypeExpense},
		{ID: Administrative, Name: "مصاريف إدارية", NameEN: "Administrative", Type: model.AccountTypeExpense},
		{ID: InventoryAdjustment, Name: "تسويات المخزون", NameEN: "Inventory Adjustments", Type: model.AccountTypeExpense},
	}
}

// DefaultCostCenters returns the cost centers a new project starts with.
func DefaultCostCenters() []model.CostCenter {
	return []model.CostCenter{
		{Code: "ADMIN", Name: "الإدارة", Active: true},
		{Code: "SALES", Name: "المبيعات", Active: true},
		{Code: "OPS", Name: "العمليات", Active: true},
	}
}
