package workflow

import (
	"fmt"

	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

var assetStates = domainwf.NewStateSet(
	[]domainwf.State{
		domainwf.StatePendingTLApproval,
		domainwf.StatePendingProcurementApproval,
		domainwf.StatePendingTLFinalApproval,
		domainwf.StatePendingDirectorApproval,
		domainwf.StatePendingManagingDirectorApproval,
		domainwf.StatePendingProcurementFinalApproval,
		domainwf.StatePendingAccountsApproval,
		domainwf.StatePendingFinalDelivery,
		domainwf.StateCompleted,
		domainwf.StateRejectedByTeamLead,
		domainwf.StateRejectedByProcurement,
		domainwf.StateRejectedByManagingDirector,
		domainwf.StateRejectedByAccounts,
	},
	domainwf.StateCompleted,
	domainwf.StateRejectedByTeamLead,
	domainwf.StateRejectedByProcurement,
	domainwf.StateRejectedByManagingDirector,
	domainwf.StateRejectedByAccounts,
)

// assetDefinition declares the eight stage indent chain. Reject is offered
// only where the stage owner reviews content; the Director, Procurement
// final and delivery stages have no reject path.
func assetDefinition() *Definition {
	d := newDefinition(entity.RequestTypeAsset)
	d.RequiresTeamLead = true
	d.Readers = identity.NewRoleSet(
		identity.RoleProcurement,
		identity.RoleDirector,
		identity.RoleManagingDirector,
		identity.RoleAccounts,
		identity.RoleAdmin,
	)

	td := d.addTrack(domainwf.TrackStatus, assetStates, domainwf.StatePendingTLApproval)
	owned := domainwf.OwnedBy(entity.RefTeamLead)

	d.permit(td, domainwf.StatePendingTLApproval, domainwf.TriggerApprove, domainwf.StatePendingProcurementApproval,
		identity.RoleTeamLead, assetTeamLeadMerge, "Request approved by Team Lead and sent to Procurement.", owned)
	d.permit(td, domainwf.StatePendingTLApproval, domainwf.TriggerReject, domainwf.StateRejectedByTeamLead,
		identity.RoleTeamLead, rejectMerge, rejectedBy(identity.RoleTeamLead), owned)

	d.permit(td, domainwf.StatePendingProcurementApproval, domainwf.TriggerApprove, domainwf.StatePendingTLFinalApproval,
		identity.RoleProcurement, assetProcurementMerge, "Procurement details added and sent to Team Lead for final approval.")
	d.permit(td, domainwf.StatePendingProcurementApproval, domainwf.TriggerReject, domainwf.StateRejectedByProcurement,
		identity.RoleProcurement, rejectMerge, rejectedBy(identity.RoleProcurement))

	d.permit(td, domainwf.StatePendingTLFinalApproval, domainwf.TriggerApprove, domainwf.StatePendingDirectorApproval,
		identity.RoleTeamLead, assetTeamLeadFinalMerge, "Final approval by Team Lead received. Request is sent to Director.", owned)
	d.permit(td, domainwf.StatePendingTLFinalApproval, domainwf.TriggerReject, domainwf.StateRejectedByTeamLead,
		identity.RoleTeamLead, rejectMerge, rejectedBy(identity.RoleTeamLead), owned)

	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerApprove, domainwf.StatePendingManagingDirectorApproval,
		identity.RoleDirector, assetDirectorMerge, "Request approved by Director and sent to Managing Director.")

	d.permit(td, domainwf.StatePendingManagingDirectorApproval, domainwf.TriggerApprove, domainwf.StatePendingProcurementFinalApproval,
		identity.RoleManagingDirector, assetManagingDirectorMerge, "Request approved by MD and sent to Procurement for final processing.")
	d.permit(td, domainwf.StatePendingManagingDirectorApproval, domainwf.TriggerReject, domainwf.StateRejectedByManagingDirector,
		identity.RoleManagingDirector, rejectMerge, rejectedBy(identity.RoleManagingDirector))

	d.permit(td, domainwf.StatePendingProcurementFinalApproval, domainwf.TriggerApprove, domainwf.StatePendingAccountsApproval,
		identity.RoleProcurement, assetProcurementFinalMerge, "Procurement details finalized and sent to Accounts.")

	d.permit(td, domainwf.StatePendingAccountsApproval, domainwf.TriggerApprove, domainwf.StatePendingFinalDelivery,
		identity.RoleAccounts, assetAccountsMerge, "Accounts details finalized. Request is sent to Procurement for final delivery.")
	d.permit(td, domainwf.StatePendingAccountsApproval, domainwf.TriggerReject, domainwf.StateRejectedByAccounts,
		identity.RoleAccounts, rejectMerge, rejectedBy(identity.RoleAccounts))

	d.permit(td, domainwf.StatePendingFinalDelivery, domainwf.TriggerApprove, domainwf.StateCompleted,
		identity.RoleProcurement, assetDeliveryMerge, "Final delivery details recorded. Request is complete.")

	return d
}

func rejectedBy(role identity.Role) string {
	return fmt.Sprintf("Request rejected by %s", role)
}

func assetTeamLeadMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.AssetTeamLeadStage](sc, nil)
	if err != nil {
		return nil, err
	}
	if err := required("justification", in.Justification); err != nil {
		return nil, err
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.TeamLead = in
	return in, nil
}

func assetProcurementMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.AssetProcurementStage](sc, nil)
	if err != nil {
		return nil, err
	}
	if len(in.ProcurementItems) == 0 {
		return nil, fmt.Errorf("%w: missing required fields: procurement_items", domainwf.ErrValidation)
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.Procurement = in
	return in, nil
}

func assetTeamLeadFinalMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.AssetTeamLeadFinalStage](sc, nil)
	if err != nil {
		return nil, err
	}
	if err := required("finalized_vendor", in.FinalizedVendor); err != nil {
		return nil, err
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.TeamLeadFinal = in
	return in, nil
}

func assetDirectorMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.BoardApproval](sc, map[string]string{
		"director_pi_approval":       "pi_approval",
		"director_pd_approval":       "pd_approval",
		"director_chairman_approval": "chairman_approval",
		"director_comments":          "comments",
	})
	if err != nil {
		return nil, err
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.Director = in
	return in, nil
}

func assetManagingDirectorMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.BoardApproval](sc, map[string]string{
		"md_comments":       "comments",
		"chairman_comments": "comments",
	})
	if err != nil {
		return nil, err
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.ManagingDirector = in
	return in, nil
}

func assetProcurementFinalMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.AssetProcurementFinalStage](sc, nil)
	if err != nil {
		return nil, err
	}
	if err := required("procurement_type", in.ProcurementType); err != nil {
		return nil, err
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.ProcurementFinal = in
	return in, nil
}

// assetAccountsMerge records the budget check. Bank details sent at this
// stage are ignored; they belong to the procurement final sub-record.
func assetAccountsMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.AssetAccountsStage](sc, map[string]string{
		"accounts_remarks":  "remarks",
		"accounts_comments": "comments",
		"accounts_approval": "approval",
	})
	if err != nil {
		return nil, err
	}
	if err := required("budget_allocation", in.BudgetAllocation); err != nil {
		return nil, err
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.Accounts = in
	return in, nil
}

func assetDeliveryMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.AssetStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.AssetDeliveryStage](sc, map[string]string{
		"final_delivery_status":   "status",
		"final_delivery_comments": "comments",
	})
	if err != nil {
		return nil, err
	}
	if err := required("handed_over_to", in.HandedOverTo, "received_on", in.ReceivedOn); err != nil {
		return nil, err
	}
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.Delivery = in
	return in, nil
}
