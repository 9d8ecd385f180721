package audit

import "strings"

// Agent is the browser and operating system named by a User-Agent header.
type Agent struct {
	Browser string
	OS      string
}

// ParseUserAgent classifies a User-Agent header. Unrecognised values map to "Unknown".
func ParseUserAgent(ua string) Agent {
	return Agent{Browser: browserName(ua), OS: osName(ua)}
}

// Order matters: Edge and Opera also carry "Chrome", Chrome also carries "Safari".
func browserName(ua string) string {
	switch {
	case ua == "":
		return "Unknown"
	case strings.Contains(ua, "Edg/"), strings.Contains(ua, "Edge/"):
		return "MSEdge"
	case strings.Contains(ua, "OPR/"), strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "MicroMessenger"):
		return "MicroMessenger"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Chrome/"), strings.Contains(ua, "CriOS/"):
		return "Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	case strings.Contains(ua, "MSIE"), strings.Contains(ua, "Trident/"):
		return "MSIE"
	case strings.HasPrefix(ua, "curl/"):
		return "curl"
	default:
		return "Unknown"
	}
}

func osName(ua string) string {
	switch {
	case strings.Contains(ua, "Windows NT 10"):
		return "Windows 10 or Windows Server 2016"
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iPhone"
	case strings.Contains(ua, "Mac OS X"):
		return "OSX"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}
