package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

type SubstituteLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

// TokenIssueRequest carries the TTL split into the components shown on the
// deputy form; they are summed before the bounds check.
type TokenIssueRequest struct {
	ClassID int64 `json:"class_id" validate:"required,gt=0"`
	Seconds int   `json:"ttl_sec" validate:"gte=0"`
	Minutes int   `json:"ttl_min" validate:"gte=0"`
	Hours   int   `json:"ttl_hour" validate:"gte=0"`
	Days    int   `json:"ttl_day" validate:"gte=0"`
	Weeks   int   `json:"ttl_week" validate:"gte=0"`
}

type StudentActionRequest struct {
	Action         string   `json:"action" validate:"required,oneof=deactivate restore priv_on priv_off priv_svo priv_multi priv_low_income priv_disabled set_privilege_types move"`
	StudentIDs     []int64  `json:"student_ids" validate:"required,min=1,dive,gt=0"`
	PrivilegeTypes []string `json:"privilege_types" validate:"omitempty,dive,oneof=svo multi low_income disabled"`
	TargetClassID  int64    `json:"target_class_id" validate:"required_if=Action move"`
}

func (r *LoginRequest) Validate() error {
	return validate.Struct(r)
}

func (r *SubstituteLoginRequest) Validate() error {
	return validate.Struct(r)
}

func (r *TokenIssueRequest) Validate() error {
	return validate.Struct(r)
}

func (r *StudentActionRequest) Validate() error {
	return validate.Struct(r)
}
