package models

import "time"

// Dialog steps of the booking and admin flows.
const (
	StepNone          = ""
	StepChooseRoom    = "choose_room"
	StepChooseDate    = "choose_date"
	StepChooseDesk    = "choose_desk"
	StepConfirm       = "confirm"
	StepRandomDate    = "random_date"
	StepAwaitName     = "await_name"
	StepAwaitFloorMap = "await_floor_plan"
)

// UserState is the persisted dialog state of one user.
type UserState struct {
	UserID    int64                  `json:"user_id"`
	Step      string                 `json:"step"`
	TempData  map[string]interface{} `json:"temp_data"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// CurrentStep returns the step, or StepNone for a nil state.
func (s *UserState) CurrentStep() string {
	if s == nil {
		return StepNone
	}
	return s.Step
}

// GetString returns a string value or "".
func (s *UserState) GetString(key string) string {
	if s == nil || s.TempData == nil {
		return ""
	}
	v, _ := s.TempData[key].(string)
	return v
}

// GetInt64 returns an integer value, tolerating float64 from JSON round-trips.
func (s *UserState) GetInt64(key string) int64 {
	if s == nil || s.TempData == nil {
		return 0
	}
	switch v := s.TempData[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetBool returns a boolean value or false.
func (s *UserState) GetBool(key string) bool {
	if s == nil || s.TempData == nil {
		return false
	}
	v, _ := s.TempData[key].(bool)
	return v
}
