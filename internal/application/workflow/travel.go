package workflow

import (
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

var travelStates = domainwf.NewStateSet(
	[]domainwf.State{
		domainwf.StatePendingDirectorApproval,
		domainwf.StateApproved,
		domainwf.StateRejected,
	},
	domainwf.StateApproved,
	domainwf.StateRejected,
)

func travelDefinition() *Definition {
	d := newDefinition(entity.RequestTypeTravel)
	d.Readers = identity.NewRoleSet(identity.RoleDirector, identity.RoleAdmin, identity.RoleHR)
	d.Observers = []identity.Role{identity.RoleHR}

	td := d.addTrack(domainwf.TrackStatus, travelStates, domainwf.StatePendingDirectorApproval)

	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerApprove, domainwf.StateApproved,
		identity.RoleDirector, travelDirectorMerge, "Travel request approved successfully!")
	d.permit(td, domainwf.StatePendingDirectorApproval, domainwf.TriggerReject, domainwf.StateRejected,
		identity.RoleDirector, rejectMerge, "Travel request has been rejected.")

	return d
}

func travelDirectorMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[*entity.TravelStages](req)
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
