package sink

// LaneColor is the stroke and fill of a lane.
type LaneColor struct {
	Stroke string
	Fill   string
}

var lanePalette = []LaneColor{
	{Stroke: "#1e88e5", Fill: "#e3f2fd"},
	{Stroke: "#43a047", Fill: "#e8f5e9"},
	{Stroke: "#fb8c00", Fill: "#fff3e0"},
	{Stroke: "#8e24aa", Fill: "#f3e5f5"},
	{Stroke: "#00897b", Fill: "#e0f2f1"},
	{Stroke: "#e53935", Fill: "#ffebee"},
}

// LaneColorAt returns the colour of lane i. Colours cycle through a fixed
// palette so the same lane order always gets the same colours.
func LaneColorAt(i int) LaneColor {
	if i < 0 {
		i = -i
	}
	return lanePalette[i%len(lanePalette)]
}
