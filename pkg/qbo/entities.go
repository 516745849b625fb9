package qbo

import (
	"fmt"
	"sort"
	"strings"
)

// EntityName identifies an accounting entity. The name doubles as the key the
// API wraps single-entity responses in and as the table name of the query
// language.
type EntityName string

// Supported entities.
const (
	EntityAccount         EntityName = "Account"
	EntityAttachable      EntityName = "Attachable"
	EntityBill            EntityName = "Bill"
	EntityBillPayment     EntityName = "BillPayment"
	EntityBudget          EntityName = "Budget"
	EntityClass           EntityName = "Class"
	EntityCompanyCurrency EntityName = "CompanyCurrency"
	EntityCompanyInfo     EntityName = "CompanyInfo"
	EntityCreditMemo      EntityName = "CreditMemo"
	EntityCreditCardPay   EntityName = "CreditCardPayment"
	EntityCustomer        EntityName = "Customer"
	EntityCustomerType    EntityName = "CustomerType"
	EntityDepartment      EntityName = "Department"
	EntityDeposit         EntityName = "Deposit"
	EntityEmployee        EntityName = "Employee"
	EntityEstimate        EntityName = "Estimate"
	EntityExchangeRate    EntityName = "ExchangeRate"
	EntityInventoryAdjust EntityName = "InventoryAdjustment"
	EntityInvoice         EntityName = "Invoice"
	EntityItem            EntityName = "Item"
	EntityJournalCode     EntityName = "JournalCode"
	EntityJournalEntry    EntityName = "JournalEntry"
	EntityPayment         EntityName = "Payment"
	EntityPaymentMethod   EntityName = "PaymentMethod"
	EntityPreferences     EntityName = "Preferences"
	EntityPurchase        EntityName = "Purchase"
	EntityPurchaseOrder   EntityName = "PurchaseOrder"
	EntityRefundReceipt   EntityName = "RefundReceipt"
	EntityReimburseCharge EntityName = "ReimburseCharge"
	EntitySalesReceipt    EntityName = "SalesReceipt"
	EntityTaxAgency       EntityName = "TaxAgency"
	EntityTaxCode         EntityName = "TaxCode"
	EntityTaxRate         EntityName = "TaxRate"
	EntityTaxService      EntityName = "TaxService"
	EntityTerm            EntityName = "Term"
	EntityTimeActivity    EntityName = "TimeActivity"
	EntityTransfer        EntityName = "Transfer"
	EntityVendor          EntityName = "Vendor"
	EntityVendorCredit    EntityName = "VendorCredit"
	EntityRecurringTxn    EntityName = "RecurringTransaction"
)

// entityCapabilities flags which write paths an entity supports.
type entityCapabilities struct {
	path      string
	deletable bool
	voidable  bool
	emailable bool
	printable bool
}

var entityRegistry = map[EntityName]entityCapabilities{
	EntityAccount:         {path: "account"},
	EntityAttachable:      {path: "attachable", deletable: true},
	EntityBill:            {path: "bill", deletable: true},
	EntityBillPayment:     {path: "billpayment", deletable: true, voidable: true},
	EntityBudget:          {path: "budget"},
	EntityClass:           {path: "class"},
	EntityCompanyCurrency: {path: "companycurrency"},
	EntityCompanyInfo:     {path: "companyinfo"},
	EntityCreditMemo:      {path: "creditmemo", deletable: true, emailable: true, printable: true},
	EntityCreditCardPay:   {path: "creditcardpayment", deletable: true},
	EntityCustomer:        {path: "customer"},
	EntityCustomerType:    {path: "customertype"},
	EntityDepartment:      {path: "department"},
	EntityDeposit:         {path: "deposit", deletable: true},
	EntityEmployee:        {path: "employee"},
	EntityEstimate:        {path: "estimate", deletable: true, emailable: true, printable: true},
	EntityExchangeRate:    {path: "exchangerate"},
	EntityInventoryAdjust: {path: "inventoryadjustment", deletable: true},
	EntityInvoice:         {path: "invoice", deletable: true, voidable: true, emailable: true, printable: true},
	EntityItem:            {path: "item"},
	EntityJournalCode:     {path: "journalcode"},
	EntityJournalEntry:    {path: "journalentry", deletable: true},
	EntityPayment:         {path: "payment", deletable: true, voidable: true, emailable: true, printable: true},
	EntityPaymentMethod:   {path: "paymentmethod"},
	EntityPreferences:     {path: "preferences"},
	EntityPurchase:        {path: "purchase", deletable: true},
	EntityPurchaseOrder:   {path: "purchaseorder", deletable: true, emailable: true, printable: true},
	EntityRefundReceipt:   {path: "refundreceipt", deletable: true, emailable: true, printable: true},
	EntityReimburseCharge: {path: "reimbursecharge"},
	EntitySalesReceipt:    {path: "salesreceipt", deletable: true, voidable: true, emailable: true, printable: true},
	EntityTaxAgency:       {path: "taxagency"},
	EntityTaxCode:         {path: "taxcode"},
	EntityTaxRate:         {path: "taxrate"},
	EntityTaxService:      {path: "taxservice/taxcode"},
	EntityTerm:            {path: "term"},
	EntityTimeActivity:    {path: "timeactivity", deletable: true},
	EntityTransfer:        {path: "transfer", deletable: true},
	EntityVendor:          {path: "vendor"},
	EntityVendorCredit:    {path: "vendorcredit", deletable: true},
	EntityRecurringTxn:    {path: "recurringtransaction", deletable: true},
}

// String returns the entity name.
func (e EntityName) String() string {
	return string(e)
}

// IsKnown reports whether the entity is in the registry.
func (e EntityName) IsKnown() bool {
	_, ok := entityRegistry[e]

	return ok
}

// Path returns the lowercase resource path segment for the entity.
func (e EntityName) Path() string {
	if caps, ok := entityRegistry[e]; ok {
		return caps.path
	}

	return strings.ToLower(string(e))
}

// Deletable reports whether the entity accepts operation=delete.
func (e EntityName) Deletable() bool {
	return entityRegistry[e].deletable
}

// Voidable reports whether the entity accepts operation=void.
func (e EntityName) Voidable() bool {
	return entityRegistry[e].voidable
}

// Emailable reports whether the entity has a /send endpoint.
func (e EntityName) Emailable() bool {
	return entityRegistry[e].emailable
}

// Printable reports whether the entity has a /pdf endpoint.
func (e EntityName) Printable() bool {
	return entityRegistry[e].printable
}

// Validate returns a ValidationError for entities outside the registry.
func (e EntityName) Validate() error {
	if !e.IsKnown() {
		return &ValidationError{Field: "entity", Reason: fmt.Sprintf("%v: %q", ErrUnknownEntity, string(e))}
	}

	return nil
}

// Entities returns every registered entity, sorted by name.
func Entities() []EntityName {
	names := make([]EntityName, 0, len(entityRegistry))
	for name := range entityRegistry {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}

// ReportName identifies a report endpoint.
type ReportName string

// Supported reports.
const (
	ReportAccountList           ReportName = "AccountList"
	ReportAgedPayableDetail     ReportName = "AgedPayableDetail"
	ReportAgedPayables          ReportName = "AgedPayables"
	ReportAgedReceivableDetail  ReportName = "AgedReceivableDetail"
	ReportAgedReceivables       ReportName = "AgedReceivables"
	ReportBalanceSheet          ReportName = "BalanceSheet"
	ReportCashFlow              ReportName = "CashFlow"
	ReportCustomerBalance       ReportName = "CustomerBalance"
	ReportCustomerBalanceDetail ReportName = "CustomerBalanceDetail"
	ReportCustomerIncome        ReportName = "CustomerIncome"
	ReportGeneralLedger         ReportName = "GeneralLedger"
	ReportInventoryValuation    ReportName = "InventoryValuationSummary"
	ReportJournalReport         ReportName = "JournalReport"
	ReportProfitAndLoss         ReportName = "ProfitAndLoss"
	ReportProfitAndLossDetail   ReportName = "ProfitAndLossDetail"
	ReportSalesByClass          ReportName = "ClassSales"
	ReportSalesByCustomer       ReportName = "CustomerSales"
	ReportSalesByDepartment     ReportName = "DepartmentSales"
	ReportSalesByProduct        ReportName = "ItemSales"
	ReportTaxSummary            ReportName = "TaxSummary"
	ReportTransactionList       ReportName = "TransactionList"
	ReportTrialBalance          ReportName = "TrialBalance"
	ReportVendorBalance         ReportName = "VendorBalance"
	ReportVendorBalanceDetail   ReportName = "VendorBalanceDetail"
	ReportVendorExpenses        ReportName = "VendorExpenses"
)

// Path returns the resource path of the report.
func (r ReportName) Path() string {
	return "reports/" + string(r)
}
