package submission

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform identifies where a demo video is hosted.
type Platform string

const (
	PlatformYouTube      Platform = "youtube"
	PlatformLoom         Platform = "loom"
	PlatformVimeo        Platform = "vimeo"
	PlatformGoogleDrive  Platform = "google_drive"
	PlatformDropbox      Platform = "dropbox"
	PlatformDescript     Platform = "descript"
	PlatformScreenStudio Platform = "screen_studio"
	PlatformOther        Platform = "other"
	PlatformUnknown      Platform = "unknown"
)

// Repository URL issues.
const (
	IssueEmptyURL          = "empty_url"
	IssueNotGitHub         = "not_github_url"
	IssueGitHubPages       = "github_pages_not_repo"
	IssueStrippedBranchRef = "stripped_branch_ref"
	IssuePlaceholderURL    = "placeholder_url"
	IssueInvalidURLFormat  = "invalid_url_format"
	IssueCustomDomain      = "custom_domain_may_not_be_downloadable"
	IssueStillUploading    = "video_still_uploading"
)

// GitHubURL is the classification of a repository URL.
type GitHubURL struct {
	Original string
	Cleaned  string
	CloneURL string
	Valid    bool
	Issues   []string
}

var branchRefSuffix = regexp.MustCompile(`/(tree|blob)/.*$`)

// ClassifyGitHubURL normalizes raw and derives a clone URL ending in .git.
func ClassifyGitHubURL(raw string) GitHubURL {
	trimmed := strings.TrimSpace(raw)
	info := GitHubURL{Original: trimmed}
	if trimmed == "" {
		info.Issues = append(info.Issues, IssueEmptyURL)
		return info
	}

	cleaned := strings.Replace(trimmed, "https:www.github.com", "https://www.github.com", 1)
	cleaned = strings.Replace(cleaned, "www.github.com", "github.com", 1)
	if !strings.HasPrefix(strings.ToLower(cleaned), "http") {
		cleaned = "https://" + cleaned
	}
	info.Cleaned = cleaned

	parsed, err := url.Parse(cleaned)
	if err != nil || parsed.Host == "" {
		info.Issues = append(info.Issues, IssueInvalidURLFormat)
		return info
	}
	host := strings.ToLower(parsed.Host)
	if strings.HasSuffix(host, "github.io") {
		info.Issues = append(info.Issues, IssueGitHubPages)
		return info
	}
	if host != "github.com" {
		info.Issues = append(info.Issues, IssueNotGitHub+": "+host)
		return info
	}

	path := strings.Trim(branchRefSuffix.ReplaceAllString(parsed.Path, ""), "/")
	path = strings.TrimSuffix(path, ".git")
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		info.Issues = append(info.Issues, IssueInvalidURLFormat)
		return info
	}
	info.CloneURL = "https://github.com/" + segments[0] + "/" + segments[1] + ".git"
	info.Valid = true
	if branchRefSuffix.MatchString(parsed.Path) {
		info.Issues = append(info.Issues, IssueStrippedBranchRef)
	}
	return info
}

// VideoURL is the classification of a demo video URL.
type VideoURL struct {
	Original string
	Platform Platform
	Valid    bool
	Issues   []string
}

var platformKeywords = []struct {
	keywords []string
	platform Platform
}{
	{[]string{"youtu.be", "youtube.com"}, PlatformYouTube},
	{[]string{"loom.com"}, PlatformLoom},
	{[]string{"vimeo.com"}, PlatformVimeo},
	{[]string{"drive.google.com", "docs.google.com/video"}, PlatformGoogleDrive},
	{[]string{"dropbox.com"}, PlatformDropbox},
	{[]string{"descript.com"}, PlatformDescript},
	{[]string{"screen.studio"}, PlatformScreenStudio},
}

// ClassifyVideoURL identifies the hosting platform of raw.
func ClassifyVideoURL(raw string) VideoURL {
	trimmed := strings.TrimSpace(raw)
	info := VideoURL{Original: trimmed, Platform: PlatformUnknown}
	if trimmed == "" {
		info.Issues = append(info.Issues, IssueEmptyURL)
		return info
	}
	lower := strings.ToLower(trimmed)
	for _, entry := range platformKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				info.Platform = entry.platform
				info.Valid = true
				break
			}
		}
		if info.Valid {
			break
		}
	}
	if !info.Valid {
		switch {
		case strings.Contains(lower, "example.com"):
			info.Issues = append(info.Issues, IssuePlaceholderURL)
		case strings.HasPrefix(lower, "http"):
			info.Platform = PlatformOther
			info.Valid = true
			info.Issues = append(info.Issues, IssueCustomDomain)
		default:
			info.Issues = append(info.Issues, IssueInvalidURLFormat)
		}
	}
	if info.Platform == PlatformScreenStudio && strings.Contains(lower, "uploading") {
		info.Valid = false
		info.Issues = append(info.Issues, IssueStillUploading)
	}
	return info
}

var driveFileID = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`),
}

// GoogleDriveFileID extracts the file id from a Google Drive share link.
func GoogleDriveFileID(raw string) (string, bool) {
	for _, pattern := range driveFileID {
		if match := pattern.FindStringSubmatch(raw); len(match) == 2 {
			return match[1], true
		}
	}
	return "", false
}
