package batch

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

const driveDownloadURL = "https://drive.google.com/uc"

var (
	driveFileID  = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	formPattern  = regexp.MustCompile(`(?is)<form[^>]*\baction="([^"]*)"[^>]*>(.*?)</form>`)
	methodAttr   = regexp.MustCompile(`(?i)\bmethod="([^"]*)"`)
	inputPattern = regexp.MustCompile(`(?is)<input[^>]*>`)
	nameAttr     = regexp.MustCompile(`(?i)\bname="([^"]*)"`)
	valueAttr    = regexp.MustCompile(`(?i)\bvalue="([^"]*)"`)
)

// IsDriveURL reports whether raw points at Google Drive.
func IsDriveURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "drive.google.com" || host == "docs.google.com"
}

// DirectDriveURL rewrites a Drive share link (".../file/d/<id>/view") into
// its direct download URL. ok is false when raw is not a share link.
func DirectDriveURL(raw string) (string, bool) {
	if !IsDriveURL(raw) {
		return raw, false
	}
	m := driveFileID.FindStringSubmatch(raw)
	if m == nil {
		return raw, false
	}
	q := url.Values{}
	q.Set("export", "download")
	q.Set("id", m[1])
	return driveDownloadURL + "?" + q.Encode(), true
}

// confirmForm is the large-file warning form Drive serves instead of the
// file body.
type confirmForm struct {
	Action string
	Method string
	Values url.Values
}

// parseConfirmForm finds the form carrying a "confirm" field. Relative
// actions resolve against base.
func parseConfirmForm(body string, base *url.URL) (confirmForm, bool) {
	for _, m := range formPattern.FindAllStringSubmatch(body, -1) {
		values := url.Values{}
		for _, input := range inputPattern.FindAllString(m[2], -1) {
			name := nameAttr.FindStringSubmatch(input)
			if name == nil {
				continue
			}
			var value string
			if v := valueAttr.FindStringSubmatch(input); v != nil {
				value = html.UnescapeString(v[1])
			}
			values.Set(html.UnescapeString(name[1]), value)
		}
		if values.Get("confirm") == "" {
			continue
		}
		action, err := url.Parse(html.UnescapeString(m[1]))
		if err != nil {
			continue
		}
		if base != nil {
			action = base.ResolveReference(action)
		}
		method := "GET"
		if mm := methodAttr.FindStringSubmatch(m[0][:strings.Index(m[0], ">")+1]); mm != nil {
			method = strings.ToUpper(mm[1])
		}
		return confirmForm{Action: action.String(), Method: method, Values: values}, true
	}
	return confirmForm{}, false
}
