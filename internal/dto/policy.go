package dto

// GradeBandRequest is one band row of a policy registration payload.
type GradeBandRequest struct {
	Min    float64 `json:"min" validate:"gte=0"`
	Max    float64 `json:"max" validate:"gte=0"`
	Grade  string  `json:"grade" validate:"required"`
	Remark string  `json:"remark"`
}

// CreatePolicyRequest captures POST /policies payload.
type CreatePolicyRequest struct {
	Code      string             `json:"code" validate:"required,uppercase"`
	BoardType string             `json:"boardType" validate:"required,oneof=CBSE STATE ICSE"`
	Domain    string             `json:"domain" validate:"required,oneof=marks percentage"`
	DomainMax float64            `json:"domainMax" validate:"gt=0"`
	Bands     []GradeBandRequest `json:"bands" validate:"required,min=2,dive"`
}
