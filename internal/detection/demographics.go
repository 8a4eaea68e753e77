package detection

// Unknown marks an attribute that could not be estimated.
const Unknown = "unknown"

// Defaults applied to persons when the analyzer supplies no role or risk.
const (
	DefaultRole = "pedestrian"
	DefaultRisk = "medium"
)

// Age categories.
const (
	CategoryChild  = "child"
	CategoryAdult  = "adult"
	CategorySenior = "senior"
)

// Demographics is the analyzer's estimate for one person. Empty strings
// and a nil Age mean the value was not estimated.
type Demographics struct {
	Gender   string `json:"gender"`
	Age      *int   `json:"age"`
	Category string `json:"category"`
	Role     string `json:"role,omitempty"`
	Risk     string `json:"risk_level,omitempty"`
}

// UnknownDemographics is the degraded result used when analysis fails.
func UnknownDemographics() Demographics {
	return Demographics{Gender: Unknown, Category: Unknown}
}

// AgeCategory buckets an estimated age.
func AgeCategory(age int) string {
	switch {
	case age < 14:
		return CategoryChild
	case age < 60:
		return CategoryAdult
	default:
		return CategorySenior
	}
}

// Normalized fills missing fields: category from age, unknown for the
// rest, and the default role and risk.
func (d Demographics) Normalized() Demographics {
	if d.Gender == "" {
		d.Gender = Unknown
	}
	if d.Category == "" {
		if d.Age != nil {
			d.Category = AgeCategory(*d.Age)
		} else {
			d.Category = Unknown
		}
	}
	if d.Role == "" {
		d.Role = DefaultRole
	}
	if d.Risk == "" {
		d.Risk = DefaultRisk
	}
	return d
}
