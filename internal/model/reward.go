package model

// PointTable maps each priority to a point value.
type PointTable struct {
	High   int `yaml:"high" json:"high"`
	Medium int `yaml:"medium" json:"medium"`
	Low    int `yaml:"low" json:"low"`
}

// For looks up the value for p, falling back to the medium tier.
func (pt PointTable) For(p Priority) int {
	switch p {
	case PriorityHigh:
		return pt.High
	case PriorityLow:
		return pt.Low
	default:
		return pt.Medium
	}
}

// Rewards holds the point tables for task creation and completion.
type Rewards struct {
	Creation   PointTable `yaml:"creation" json:"creation"`
	Completion PointTable `yaml:"completion" json:"completion"`
}

// DefaultRewards returns the built-in point tables.
func DefaultRewards() Rewards {
	return Rewards{
		Creation:   PointTable{High: 10, Medium: 5, Low: 5},
		Completion: PointTable{High: 30, Medium: 15, Low: 8},
	}
}
