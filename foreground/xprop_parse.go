package foreground

import "strings"

// parseActiveWindow extracts the id from
// "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007". A zero id means no window.
func parseActiveWindow(out string) (string, bool) {
	fields := strings.Fields(out)
	if len(fields) < 5 {
		return "", false
	}
	id := strings.TrimSuffix(fields[len(fields)-1], ",")
	if !strings.HasPrefix(id, "0x") || strings.Trim(id[2:], "0") == "" {
		return "", false
	}
	return id, true
}

// parseWMClass returns the class part of `WM_CLASS(STRING) = "instance", "Class"`,
// lower-cased. A window with only an instance name reports that.
func parseWMClass(out string) (string, bool) {
	_, rhs, ok := strings.Cut(out, "=")
	if !ok {
		return "", false
	}
	var names []string
	for _, part := range strings.Split(rhs, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"`)
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	return strings.ToLower(names[len(names)-1]), true
}
