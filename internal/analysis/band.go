package analysis

// Band is a coarse reading of a 0-10 score.
type Band int

const (
	Negative Band = iota
	Caution
	Positive
)

// BandFor returns Positive for scores of 7 and up, Caution from 4, and
// Negative below that.
func BandFor(score float64) Band {
	switch {
	case score >= 7:
		return Positive
	case score >= 4:
		return Caution
	default:
		return Negative
	}
}

// Color is the hex colour renderers use for the band.
func (b Band) Color() string {
	switch b {
	case Positive:
		return "#10b981"
	case Caution:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}

func (b Band) String() string {
	switch b {
	case Positive:
		return "positive"
	case Caution:
		return "caution"
	default:
		return "negative"
	}
}
