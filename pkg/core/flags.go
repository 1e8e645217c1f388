// pkg/core/flags.go
package core

// SessionFlags is the SessionFlags bitfield.
type SessionFlags uint32

const (
	FlagCheckered     SessionFlags = 0x00000001
	FlagWhite         SessionFlags = 0x00000002
	FlagGreen         SessionFlags = 0x00000004
	FlagYellow        SessionFlags = 0x00000008
	FlagRed           SessionFlags = 0x00000010
	FlagBlue          SessionFlags = 0x00000020
	FlagDebris        SessionFlags = 0x00000040
	FlagCrossed       SessionFlags = 0x00000080
	FlagYellowWaving  SessionFlags = 0x00000100
	FlagOneLapToGreen SessionFlags = 0x00000200
	FlagGreenHeld     SessionFlags = 0x00000400
	FlagTenToGo       SessionFlags = 0x00000800
	FlagFiveToGo      SessionFlags = 0x00001000
	FlagRandomWaving  SessionFlags = 0x00002000
	FlagCaution       SessionFlags = 0x00004000
	FlagCautionWaving SessionFlags = 0x00008000
	FlagBlack         SessionFlags = 0x00010000
	FlagDisqualify    SessionFlags = 0x00020000
	FlagServiceable   SessionFlags = 0x00040000
	FlagFurled        SessionFlags = 0x00080000
	FlagRepair        SessionFlags = 0x00100000
	FlagStartHidden   SessionFlags = 0x10000000
	FlagStartReady    SessionFlags = 0x20000000
	FlagStartSet      SessionFlags = 0x40000000
	FlagStartGo       SessionFlags = 0x80000000
)

// flagNames is ordered: global flags, driver black flags, start lights.
var flagNames = []struct {
	flag SessionFlags
	name string
}{
	{FlagCheckered, "CHECKERED"},
	{FlagWhite, "WHITE"},
	{FlagGreen, "GREEN"},
	{FlagYellow, "YELLOW"},
	{FlagRed, "RED"},
	{FlagBlue, "BLUE"},
	{FlagDebris, "DEBRIS"},
	{FlagCrossed, "CROSSED"},
	{FlagYellowWaving, "YELLOW_WAVING"},
	{FlagOneLapToGreen, "ONE_LAP_TO_GREEN"},
	{FlagGreenHeld, "GREEN_HELD"},
	{FlagTenToGo, "TEN_TO_GO"},
	{FlagFiveToGo, "FIVE_TO_GO"},
	{FlagRandomWaving, "RANDOM_WAVING"},
	{FlagCaution, "CAUTION"},
	{FlagCautionWaving, "CAUTION_WAVING"},
	{FlagBlack, "BLACK"},
	{FlagDisqualify, "DISQUALIFY"},
	{FlagServiceable, "SERVICIBLE"},
	{FlagFurled, "FURLED"},
	{FlagRepair, "REPAIR"},
	{FlagStartHidden, "START_HIDDEN"},
	{FlagStartReady, "START_READY"},
	{FlagStartSet, "START_SET"},
	{FlagStartGo, "START_GO"},
}

// Has reports whether every bit of f is set.
func (s SessionFlags) Has(f SessionFlags) bool {
	return s&f == f
}

// Names decodes the active flags. An empty bitfield decodes to ["NONE"].
func (s SessionFlags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if s&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return []string{"NONE"}
	}
	return names
}
