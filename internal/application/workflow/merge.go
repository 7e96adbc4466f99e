package workflow

import (
	"fmt"
	"strings"

	"github.com/garyjia/hr-approval/internal/domain/entity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

func stagesOf[T entity.StageFields](req *entity.Request) (T, error) {
	s, ok := req.Stages.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected stage fields %T for %s request %d", req.Stages, req.Type, req.ID)
	}
	return s, nil
}

func decodeStage[T any](sc StageContext, aliases map[string]string) (*T, error) {
	out := new(T)
	if len(sc.Input) == 0 {
		return out, nil
	}
	if err := Decode(sc.Input, out, aliases); err != nil {
		return nil, err
	}
	return out, nil
}

// required reports the first empty field among name/value pairs
func required(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", domainwf.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

type rejectInput struct {
	Comments string `json:"comments"`
}

// rejectMerge writes the dedicated rejection sub-record
func rejectMerge(req *entity.Request, sc StageContext) (interface{}, error) {
	s, err := stagesOf[entity.Rejectable](req)
	if err != nil {
		return nil, err
	}
	in, err := decodeStage[rejectInput](sc, map[string]string{"remarks": "comments", "reason": "comments"})
	if err != nil {
		return nil, err
	}
	r := &entity.Rejection{
		Role:     sc.Transition.Role,
		By:       sc.Actor.UserID,
		ByName:   sc.Actor.Name,
		Comments: in.Comments,
		At:       sc.Now,
	}
	s.SetRejection(r)
	return r, nil
}

// directorSignOff decodes and validates the director signature block shared by leave and travel
func directorSignOff(sc StageContext) (*entity.DirectorSignOff, error) {
	in, err := decodeStage[entity.DirectorSignOff](sc, map[string]string{"director_remarks": "remarks"})
	if err != nil {
		return nil, err
	}
	if err := required("director_sign", in.DirectorSign); err != nil {
		return nil, err
	}
	in.DirectorDate = sc.Date(in.DirectorDate)
	in.By, in.At = sc.Actor.UserID, sc.Now
	return in, nil
}
