package tgui

import "strings"

// Data formats callback data as "plugin:action[:payload]".
func Data(plugin, action, payload string) string {
	d := strings.TrimSpace(plugin) + ":" + strings.TrimSpace(action)
	if payload != "" {
		d += ":" + payload
	}
	return d
}

// ParseData is the inverse of Data. The payload may itself contain ':'.
func ParseData(data string) (plugin, action, payload string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}
