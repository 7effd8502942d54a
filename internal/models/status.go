package models

// Reachability colors used by the check template.
const (
	ColorReachable   = "#8CC265"
	ColorUnreachable = "red"
)

// StatusInfo is the data object handed to the check template. Field names
// follow the template's variable names.
type StatusInfo struct {
	CPUInfo     string  `json:"cpu_info"`
	CPUProcess  float64 `json:"cpu_process"`
	RAMInfo     string  `json:"ram_info"`
	RAMProcess  float64 `json:"ram_process"`
	SwapInfo    string  `json:"swap_info"`
	SwapProcess float64 `json:"swap_process"`
	DiskInfo    string  `json:"disk_info"`
	DiskProcess float64 `json:"disk_process"`
	BrandRaw    string  `json:"brand_raw"`
	Baidu       string  `json:"baidu"`
	Google      string  `json:"google"`
	System      string  `json:"system"`
	Version     *string `json:"version"`
	PluginCount int     `json:"plugin_count"`
	Nickname    string  `json:"nickname"`
}

// ReachabilityColor maps a probe result to the template color.
func ReachabilityColor(ok bool) string {
	if ok {
		return ColorReachable
	}
	return ColorUnreachable
}
