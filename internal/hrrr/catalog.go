package hrrr

// VariableInfo describes one archive variable at one vertical level.
type VariableInfo struct {
	Variable    string
	Level       string
	Units       string
	Description string
}

// catalog lists the commonly used surface-file variables. The archive
// holds many more; unknown variables still resolve to valid paths and
// simply open without catalog attributes.
var catalog = []VariableInfo{
	{"TMP", "2m_above_ground", "K", "temperature 2 m above ground"},
	{"DPT", "2m_above_ground", "K", "dew point temperature 2 m above ground"},
	{"RH", "2m_above_ground", "%", "relative humidity 2 m above ground"},
	{"UGRD", "10m_above_ground", "m/s", "u component of wind 10 m above ground"},
	{"VGRD", "10m_above_ground", "m/s", "v component of wind 10 m above ground"},
	{"GUST", "surface", "m/s", "wind gust speed"},
	{"TMP", "surface", "K", "skin temperature"},
	{"CAPE", "surface", "J/kg", "convective available potential energy"},
	{"REFC", "entire_atmosphere", "dBZ", "composite reflectivity"},
	{"TCDC", "entire_atmosphere", "%", "total cloud cover"},
}

// Lookup returns catalog information for a level/variable pair.
func Lookup(level, variable string) (VariableInfo, bool) {
	for _, v := range catalog {
		if v.Level == level && v.Variable == variable {
			return v, true
		}
	}
	return VariableInfo{}, false
}

// DefaultLevel returns the catalog's level for a variable, preferring
// the first entry when a variable appears at several levels.
func DefaultLevel(variable string) (string, bool) {
	for _, v := range catalog {
		if v.Variable == variable {
			return v.Level, true
		}
	}
	return "", false
}

// Variables returns a copy of the catalog.
func Variables() []VariableInfo {
	out := make([]VariableInfo, len(catalog))
	copy(out, catalog)
	return out
}
