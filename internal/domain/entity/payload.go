package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/hr-approval/internal/domain/workflow"
)

// DateLayout is the layout of every date field carried in payloads and stage records
const DateLayout = "2006-01-02"

// Payload is the business content of a request, fixed at submission
type Payload interface {
	RequestType() RequestType
	// Prepare fills fields derived from the submitter and the submission time
	Prepare(applicant string, now time.Time)
	Validate() error
}

// NewPayload returns an empty payload for the request type
func NewPayload(t RequestType) (Payload, error) {
	switch t {
	case RequestTypeLeave:
		return &LeavePayload{}, nil
	case RequestTypePermission:
		return &PermissionPayload{}, nil
	case RequestTypeTravel:
		return &TravelPayload{}, nil
	case RequestTypeConveyance:
		return &ConveyancePayload{}, nil
	case RequestTypeAsset:
		return &AssetPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown request type %q", workflow.ErrValidation, t)
	}
}

// missingFields collects the names of empty required fields
type missingFields []string

func (m *missingFields) require(name, value string) {
	if strings.TrimSpace(value) == "" {
		*m = append(*m, name)
	}
}

func (m missingFields) err() error {
	if len(m) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing required fields: %s", workflow.ErrValidation, strings.Join(m, ", "))
}

func validDate(name, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return fmt.Errorf("%w: %s must be a date (YYYY-MM-DD), got %q", workflow.ErrValidation, name, value)
	}
	return nil
}

// LeavePayload is the leave application form
type LeavePayload struct {
	SpvName           string          `json:"spv_name"`
	Department        string          `json:"department"`
	EmpNo             string          `json:"emp_no"`
	ContactDetails    string          `json:"contact_details"`
	ApplicantName     string          `json:"applicant_name"`
	TotalLeaves       decimal.Decimal `json:"total_leaves"`
	LeaveAvailed      decimal.Decimal `json:"leave_availed"`
	BalanceLeaves     decimal.Decimal `json:"balance_leaves"`
	FromDate          string          `json:"from_date"`
	FromTime          string          `json:"from_time"`
	ToDate            string          `json:"to_date"`
	ToTime            string          `json:"to_time"`
	Reason            string          `json:"reason"`
	ApplicantSign     string          `json:"applicant_sign"`
	ApplicantSignDate string          `json:"applicant_sign_date"`
}

func (p *LeavePayload) RequestType() RequestType { return RequestTypeLeave }

func (p *LeavePayload) Prepare(applicant string, now time.Time) {
	if p.ApplicantName == "" {
		p.ApplicantName = applicant
	}
	if p.ApplicantSignDate == "" {
		p.ApplicantSignDate = now.Format(DateLayout)
	}
}

func (p *LeavePayload) Validate() error {
	var m missingFields
	m.require("from_date", p.FromDate)
	m.require("to_date", p.ToDate)
	m.require("reason", p.Reason)
	if err := m.err(); err != nil {
		return err
	}
	if err := validDate("from_date", p.FromDate); err != nil {
		return err
	}
	if err := validDate("to_date", p.ToDate); err != nil {
		return err
	}
	if p.ToDate < p.FromDate {
		return fmt.Errorf("%w: to_date %s is before from_date %s", workflow.ErrValidation, p.ToDate, p.FromDate)
	}
	return nil
}

// PermissionPayload is a short absence during working hours
type PermissionPayload struct {
	SpvName       string `json:"spv_name"`
	Date          string `json:"date"`
	ApplicantName string `json:"applicant_name"`
	Reason        string `json:"reason"`
	TimeOut       string `json:"time_out"`
	TimeIn        string `json:"time_in"`
	GoingTo       string `json:"going_to"`
	ApplicantSign string `json:"applicant_sign"`
}

func (p *PermissionPayload) RequestType() RequestType { return RequestTypePermission }

func (p *PermissionPayload) Prepare(applicant string, _ time.Time) {
	if p.ApplicantName == "" {
		p.ApplicantName = applicant
	}
}

func (p *PermissionPayload) Validate() error {
	var m missingFields
	m.require("spv_name", p.SpvName)
	m.require("date", p.Date)
	m.require("reason", p.Reason)
	m.require("time_out", p.TimeOut)
	m.require("time_in", p.TimeIn)
	m.require("going_to", p.GoingTo)
	m.require("applicant_sign", p.ApplicantSign)
	if err := m.err(); err != nil {
		return err
	}
	return validDate("date", p.Date)
}

// JourneyLeg is one leg of a travel itinerary
type JourneyLeg struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Mode          string `json:"mode"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date"`
	Remarks       string `json:"remarks"`
}

// TravelPayload is a business travel request
type TravelPayload struct {
	Company        string       `json:"company"`
	Date           string       `json:"date"`
	Purpose        string       `json:"purpose"`
	ApplicantSign  string       `json:"applicant_sign"`
	JourneyDetails []JourneyLeg `json:"journey_details"`
}

func (p *TravelPayload) RequestType() RequestType { return RequestTypeTravel }

func (p *TravelPayload) Prepare(string, time.Time) {}

func (p *TravelPayload) Validate() error {
	var m missingFields
	m.require("company", p.Company)
	m.require("date", p.Date)
	m.require("purpose", p.Purpose)
	if len(p.JourneyDetails) == 0 {
		m = append(m, "journey_details")
	}
	return m.err()
}

// ClaimLine is one reimbursable trip of a conveyance claim
type ClaimLine struct {
	Date       string          `json:"date"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Mode       string          `json:"mode"`
	DistanceKm decimal.Decimal `json:"distance_km"`
	Amount     decimal.Decimal `json:"amount"`
	Purpose    string          `json:"purpose"`
}

// ConveyancePayload is a local conveyance claim
type ConveyancePayload struct {
	RequestDate  string      `json:"request_date"`
	ClaimDetails []ClaimLine `json:"claim_details"`
}

func (p *ConveyancePayload) RequestType() RequestType { return RequestTypeConveyance }

func (p *ConveyancePayload) Prepare(_ string, now time.Time) {
	if p.RequestDate == "" {
		p.RequestDate = now.Format(DateLayout)
	}
}

func (p *ConveyancePayload) Validate() error {
	if len(p.ClaimDetails) == 0 {
		return fmt.Errorf("%w: missing required fields: claim_details", workflow.ErrValidation)
	}
	for i, line := range p.ClaimDetails {
		if line.Amount.IsNegative() {
			return fmt.Errorf("%w: claim line %d has a negative amount", workflow.ErrValidation, i+1)
		}
	}
	return nil
}

// Total sums the claimed amounts
func (p *ConveyancePayload) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.ClaimDetails {
		total = total.Add(line.Amount)
	}
	return total
}

// AssetItem is one line of an indent
type AssetItem struct {
	Name          string          `json:"name"`
	Brand         string          `json:"brand"`
	Vendor        string          `json:"vendor"`
	TentativeCost decimal.Decimal `json:"tentative_cost"`
	Qty           int             `json:"qty"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	RequiredBy    string          `json:"required_by"`
	Warranty      string          `json:"warranty"`
	Remarks       string          `json:"remarks"`
}

// LineTotal returns the submitted total, or cost * qty plus tax percent when no total was given
func (i AssetItem) LineTotal() decimal.Decimal {
	if !i.Total.IsZero() {
		return i.Total
	}
	base := i.TentativeCost.Mul(decimal.NewFromInt(int64(i.Qty)))
	return base.Add(base.Mul(i.Tax).Div(decimal.NewFromInt(100)))
}

// AssetPayload is an indent (asset purchase request)
type AssetPayload struct {
	IndenterName        string          `json:"indenter_name"`
	OfficeProjectType   string          `json:"office_project_type"`
	ProjectID           *int64          `json:"project_id,omitempty"`
	ReferenceFileNo     string          `json:"reference_file_no"`
	PurchaseType        string          `json:"purchase_type"`
	BudgetHead          string          `json:"budget_head"`
	NatureOfExpenditure string          `json:"nature_of_expenditure"`
	GSTApplicable       string          `json:"gst_applicable"`
	ItemDetails         []AssetItem     `json:"item_details"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	RequestDate         string          `json:"request_date"`
}

func (p *AssetPayload) RequestType() RequestType { return RequestTypeAsset }

func (p *AssetPayload) Prepare(applicant string, now time.Time) {
	if p.IndenterName == "" {
		p.IndenterName = applicant
	}
	if p.RequestDate == "" {
		p.RequestDate = now.Format(DateLayout)
	}
}

func (p *AssetPayload) Validate() error {
	if len(p.ItemDetails) == 0 {
		return fmt.Errorf("%w: missing required fields: item_details", workflow.ErrValidation)
	}
	if p.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: discount_amount must not be negative", workflow.ErrValidation)
	}
	return nil
}

// GrandTotal sums the item totals less the discount
func (p *AssetPayload) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.ItemDetails {
		total = total.Add(item.LineTotal())
	}
	return total.Sub(p.DiscountAmount)
}
