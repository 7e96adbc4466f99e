package workflow

import (
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

// chainStates are shared by leave and permission requests
var chainStates = domainwf.NewStateSet(
	[]domainwf.State{
		domainwf.StatePending,
		domainwf.StatePendingHRApproval,
		domainwf.StatePendingDirectorApproval,
		domainwf.StateApproved,
		domainwf.StateRejected,
	},
	domainwf.StateApproved,
	domainwf.StateRejected,
)

func leaveDefinition() *Definition {
	d := newDefinition(entity.RequestTypeLeave)
	d.RequiresTeamLead = true
	d.Readers = identity.NewRoleSet(identity.RoleHR, identity.RoleDirector)

	td := d.addTrack(domainwf.TrackStatus, chainStates, domainwf.StatePending)
	owned := domainwf.OwnedBy(entity.RefTeamLead)
	rejected := "Leave request has been rejected."

	d.permit(td, domainwf.StatePending, domainwf.TriggerApprove, domainwf.StatePendingHRApproval,
		identity.RoleTeamLead, leaveTeamLeadMerge, "Leave request approved and forwarded to HR.", owned)
	d.permit(td, domainwf.StatePending, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleTeamLead, rejectMerge, rejected, owned)

	d.permit(td, domainwf.StatePendingHRApproval, domainwf.TriggerApprove, domainwf.StatePendingDirectorApproval,
		identity.RoleHR, leaveHRMerge, "Leave request approved by HR and forwarded to Director.")
	d.permit(td, domainwf.StatePendingHRApproval, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleHR, rejectMerge, rejected)

	// The dedicated Director action is tried before the Team Lead shortcut
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerApprove, domainwf.StateApproved,
		identity.RoleDirector, leaveDirectorMerge, "Leave request finalized and approved.")
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleDirector, rejectMerge, rejected)

	dual := []domainwf.TransitionOption{owned, domainwf.AlsoRequires(identity.RoleDirector)}
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerApprove, domainwf.StateApproved,
		identity.RoleTeamLead, leaveDirectorMerge, "Leave request approved by Director.", dual...)
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleTeamLead, rejectMerge, rejected, dual...)

	return d
}

func leaveTeamLeadMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.LeaveStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.LeaveTeamLeadStage](sc, map[string]string{"team_lead_remarks": "remarks"})
	if err != nil {
		return nil, err
	}
	if err := required("reporting_authority_sign", in.ReportingAuthoritySign); err != nil {
		return nil, err
	}
	in.ReportingAuthorityDate = sc.Date(in.ReportingAuthorityDate)
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.TeamLead = in
	return in, nil
}

func leaveHRMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.LeaveStages](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[entity.LeaveHRStage](sc, nil)
	if err != nil {
		return nil, err
	}
	if err := required("hr_sign", in.HRSign); err != nil {
		return nil, err
	}
	in.HRDate = sc.Date(in.HRDate)
	in.By, in.At = sc.Actor.UserID, sc.Now
	s.HR = in
	return in, nil
}

// leaveDirectorMerge serves both the Director action and the Team Lead shortcut.
// Both write the director sub-record; the team lead sub-record is left as signed at Pending.
func leaveDirectorMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.LeaveStages](req)
	if err != nil {
		return nil, err
	}
	in, err := directorSignOff(sc)
	if err != nil {
		return nil, err
	}
	s.Director = in
	return in, nil
}
