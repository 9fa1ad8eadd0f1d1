package overlay

// Colors used for score tiers.
const (
	ColorSuccess = "#34d399"
	ColorWarning = "#fbbf24"
	ColorDanger  = "#f87171"
)

// Tier is the visual band a score falls into.
type Tier struct {
	Name  string
	Color string
	Label string
}

// TierFor maps a score to its tier.
func TierFor(score int) Tier {
	switch {
	case score >= 85:
		return Tier{Name: "success", Color: ColorSuccess, Label: "Exceptional"}
	case score >= 70:
		return Tier{Name: "success", Color: ColorSuccess, Label: "Strong Match"}
	case score >= 55:
		return Tier{Name: "warning", Color: ColorWarning, Label: "Good Fit"}
	case score >= 40:
		return Tier{Name: "warning", Color: ColorWarning, Label: "Moderate"}
	default:
		return Tier{Name: "danger", Color: ColorDanger, Label: "Weak Match"}
	}
}
