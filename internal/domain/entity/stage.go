package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/internal/domain/workflow"
)

// StageFields holds the per-stage sub-records of a request. Each stage
// writes only its own sub-record.
type StageFields interface {
	RequestType() RequestType
}

// NewStageFields returns empty stage fields for the request type
func NewStageFields(t RequestType) (StageFields, error) {
	switch t {
	case RequestTypeLeave:
		return &LeaveStages{}, nil
	case RequestTypePermission:
		return &PermissionStages{}, nil
	case RequestTypeTravel:
		return &TravelStages{}, nil
	case RequestTypeConveyance:
		return &ConveyanceStages{}, nil
	case RequestTypeAsset:
		return &AssetStages{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown request type %q", workflow.ErrValidation, t)
	}
}

// Rejection records who stopped a request and why
type Rejection struct {
	Role     identity.Role `json:"role"`
	By       int64         `json:"by"`
	ByName   string        `json:"by_name"`
	Comments string        `json:"comments"`
	At       time.Time     `json:"at"`
}

// Rejectable stage fields carry a dedicated rejection sub-record
type Rejectable interface {
	StageFields
	SetRejection(r *Rejection)
}

// Leave

type LeaveTeamLeadStage struct {
	ReportingAuthoritySign string    `json:"reporting_authority_sign"`
	ReportingAuthorityDate string    `json:"reporting_authority_date"`
	Remarks                string    `json:"remarks"`
	By                     int64     `json:"by"`
	At                     time.Time `json:"at"`
}

type LeaveHRStage struct {
	HRSign string    `json:"hr_sign"`
	HRDate string    `json:"hr_date"`
	By     int64     `json:"by"`
	At     time.Time `json:"at"`
}

// DirectorSignOff is the director's signature on leave and travel requests
type DirectorSignOff struct {
	DirectorSign string    `json:"director_sign"`
	DirectorDate string    `json:"director_date"`
	Remarks      string    `json:"remarks"`
	By           int64     `json:"by"`
	At           time.Time `json:"at"`
}

type LeaveStages struct {
	TeamLead  *LeaveTeamLeadStage `json:"team_lead,omitempty"`
	HR        *LeaveHRStage       `json:"hr,omitempty"`
	Director  *DirectorSignOff    `json:"director,omitempty"`
	Rejection *Rejection          `json:"rejection,omitempty"`
}

func (s *LeaveStages) SetRejection(r *Rejection) { s.Rejection = r }

func (s *LeaveStages) RequestType() RequestType { return RequestTypeLeave }

// Permission

// Signature is a single approver signature
type Signature struct {
	Sign string    `json:"sign"`
	By   int64     `json:"by"`
	At   time.Time `json:"at"`
}

type PermissionStages struct {
	TeamLeadSign *Signature `json:"team_lead_sign,omitempty"`
	HRSign       *Signature `json:"hr_sign,omitempty"`
	DirectorSign *Signature `json:"director_sign,omitempty"`
	Rejection    *Rejection `json:"rejection,omitempty"`
}

func (s *PermissionStages) SetRejection(r *Rejection) { s.Rejection = r }

func (s *PermissionStages) RequestType() RequestType { return RequestTypePermission }

// Travel

type TravelStages struct {
	Director  *DirectorSignOff `json:"director,omitempty"`
	Rejection *Rejection       `json:"rejection,omitempty"`
}

func (s *TravelStages) SetRejection(r *Rejection) { s.Rejection = r }

func (s *TravelStages) RequestType() RequestType { return RequestTypeTravel }

// Conveyance

// SeenMark records that a role has acknowledged a claim
type SeenMark struct {
	By int64     `json:"by"`
	At time.Time `json:"at"`
}

type ConveyanceStages struct {
	HRSeen       *SeenMark `json:"hr_seen,omitempty"`
	AccountsSeen *SeenMark `json:"accounts_seen,omitempty"`
}

func (s *ConveyanceStages) RequestType() RequestType { return RequestTypeConveyance }

// Asset

type AssetTeamLeadStage struct {
	Justification string    `json:"justification"`
	By            int64     `json:"by"`
	At            time.Time `json:"at"`
}

// ProcurementItem is one quotation line attached by Procurement
type ProcurementItem struct {
	Name      string          `json:"name"`
	Vendor    string          `json:"vendor"`
	Quotation decimal.Decimal `json:"quotation"`
	Qty       int             `json:"qty"`
	Remarks   string          `json:"remarks"`
}

type AssetProcurementStage struct {
	ProcurementItems []ProcurementItem `json:"procurement_items"`
	By               int64             `json:"by"`
	At               time.Time         `json:"at"`
}

type AssetTeamLeadFinalStage struct {
	FinalizedVendor     string    `json:"finalized_vendor"`
	ApprovalProcurement string    `json:"approval_procurement"`
	By                  int64     `json:"by"`
	At                  time.Time `json:"at"`
}

// BoardApproval is the approval block signed by the Director and the Managing Director
type BoardApproval struct {
	PIApproval       bool      `json:"pi_approval"`
	PDApproval       bool      `json:"pd_approval"`
	ChairmanApproval bool      `json:"chairman_approval"`
	MDApproval       bool      `json:"md_approval"`
	Comments         string    `json:"comments"`
	By               int64     `json:"by"`
	At               time.Time `json:"at"`
}

type AssetProcurementFinalStage struct {
	ProcurementType   string    `json:"procurement_type"`
	AccountNo         string    `json:"account_no"`
	IFSCCode          string    `json:"ifsc_code"`
	BranchName        string    `json:"branch_name"`
	AccountHolderName string    `json:"account_holder_name"`
	By                int64     `json:"by"`
	At                time.Time `json:"at"`
}

type AssetAccountsStage struct {
	BudgetAllocation string    `json:"budget_allocation"`
	BudgetUtilized   string    `json:"budget_utilized"`
	AvailableBalance string    `json:"available_balance"`
	FundsAvailable   bool      `json:"funds_available"`
	Remarks          string    `json:"remarks"`
	Approval         bool      `json:"approval"`
	Comments         string    `json:"comments"`
	By               int64     `json:"by"`
	At               time.Time `json:"at"`
}

type AssetDeliveryStage struct {
	HandedOverTo string    `json:"handed_over_to"`
	ReceivedOn   string    `json:"received_on"`
	Status       string    `json:"status"`
	Comments     string    `json:"comments"`
	By           int64     `json:"by"`
	At           time.Time `json:"at"`
}

type AssetStages struct {
	TeamLead         *AssetTeamLeadStage         `json:"team_lead,omitempty"`
	Procurement      *AssetProcurementStage      `json:"procurement,omitempty"`
	TeamLeadFinal    *AssetTeamLeadFinalStage    `json:"team_lead_final,omitempty"`
	Director         *BoardApproval              `json:"director,omitempty"`
	ManagingDirector *BoardApproval              `json:"managing_director,omitempty"`
	ProcurementFinal *AssetProcurementFinalStage `json:"procurement_final,omitempty"`
	Accounts         *AssetAccountsStage         `json:"accounts,omitempty"`
	Delivery         *AssetDeliveryStage         `json:"delivery,omitempty"`
	Rejection        *Rejection                  `json:"rejection,omitempty"`
}

func (s *AssetStages) SetRejection(r *Rejection) { s.Rejection = r }

func (s *AssetStages) RequestType() RequestType { return RequestTypeAsset }
