package workflow

import (
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

func permissionDefinition() *Definition {
	d := newDefinition(entity.RequestTypePermission)
	d.RequiresTeamLead = true
	d.Readers = identity.NewRoleSet(identity.RoleHR, identity.RoleDirector, identity.RoleAdmin)

	td := d.addTrack(domainwf.TrackStatus, chainStates, domainwf.StatePending)
	owned := domainwf.OwnedBy(entity.RefTeamLead)
	rejected := "Permission request has been rejected."

	d.permit(td, domainwf.StatePending, domainwf.TriggerApprove, domainwf.StatePendingHRApproval,
		identity.RoleTeamLead, permissionSignMerge(func(s *entity.PermissionStages, sig *entity.Signature) { s.TeamLeadSign = sig }),
		"Permission request approved and forwarded to HR!", owned)
	d.permit(td, domainwf.StatePending, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleTeamLead, rejectMerge, rejected, owned)

	d.permit(td, domainwf.StatePendingHRApproval, domainwf.TriggerApprove, domainwf.StatePendingDirectorApproval,
		identity.RoleHR, permissionSignMerge(func(s *entity.PermissionStages, sig *entity.Signature) { s.HRSign = sig }),
		"Permission request approved by HR and forwarded to Director!")
	d.permit(td, domainwf.StatePendingHRApproval, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleHR, rejectMerge, rejected)

	directorSign := permissionSignMerge(func(s *entity.PermissionStages, sig *entity.Signature) { s.DirectorSign = sig })

	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerApprove, domainwf.StateApproved,
		identity.RoleDirector, directorSign, "Permission request approved successfully!")
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleDirector, rejectMerge, rejected)

	dual := []domainwf.TransitionOption{owned, domainwf.AlsoRequires(identity.RoleDirector)}
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerApprove, domainwf.StateApproved,
		identity.RoleTeamLead, directorSign, "Permission request approved by Director.", dual...)
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleTeamLead, rejectMerge, rejected, dual...)

	return d
}

type approverSignInput struct {
	ApproverSign string `json:"approver_sign"`
}

// permissionSignMerge records the approver signature into the slot chosen by set
func permissionSignMerge(set func(*entity.PermissionStages, *entity.Signature)) MergeFunc {
	return func(req *entity.Request, sc StageContext) (interface{}, error) {
		s, err := stagesOf[*entity.PermissionStages](req)
		if err != nil {
			return nil, err
		}
		in, err := decodeStage[approverSignInput](sc, map[string]string{
			"team_lead_sign": "approver_sign",
			"hr_sign":        "approver_sign",
			"director_sign":  "approver_sign",
		})
		if err != nil {
			return nil, err
		}
		if err := required("approver_sign", in.ApproverSign); err != nil {
			return nil, err
		}
		sig := &entity.Signature{Sign: in.ApproverSign, By: sc.Actor.UserID, At: sc.Now}
		set(s, sig)
		return sig, nil
	}
}
