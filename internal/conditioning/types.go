// Package conditioning validates ControlNet conditioning inputs: the
// auxiliary images (with stop fraction, weight and type) that steer image
// generation beyond the text prompt.
package conditioning

// Type is the conditioning method applied to an input image.
type Type string

const (
	TypeImagePrompt Type = "ImagePrompt"
	TypeFaceSwap    Type = "FaceSwap"
	TypePyraCanny   Type = "PyraCanny"
	TypeCPDS        Type = "CPDS"
)

// Limits and defaults for conditioning inputs.
const (
	MinInputs = 1
	MaxInputs = 4

	DefaultStop   = 0.6
	DefaultWeight = 0.5
	DefaultType   = TypeImagePrompt

	MinStop   = 0.0
	MaxStop   = 1.0
	MinWeight = 0.0
	MaxWeight = 2.0
)

// ParseType maps a wire value to a Type. The empty string selects
// DefaultType; any other unrecognized value is rejected.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case "":
		return DefaultType, true
	case TypeImagePrompt, TypeFaceSwap, TypePyraCanny, TypeCPDS:
		return Type(s), true
	default:
		return "", false
	}
}

// Types lists all supported conditioning types.
func Types() []Type {
	return []Type{TypeImagePrompt, TypeFaceSwap, TypePyraCanny, TypeCPDS}
}

// Input is one validated conditioning image.
type Input struct {
	Image  string  `json:"cn_img" validate:"required"`
	Stop   float64 `json:"cn_stop" validate:"gte=0,lte=1"`
	Weight float64 `json:"cn_weight" validate:"gte=0,lte=2"`
	Type   Type    `json:"cn_type" validate:"oneof=ImagePrompt FaceSwap PyraCanny CPDS"`
}
