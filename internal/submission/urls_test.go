package submission_test

import (
	"testing"

	"hackreview/internal/submission"
)

func TestClassifyGitHubURL(t *testing.T) {
	tests := []struct {
		raw      string
		clone    string
		valid    bool
		hasIssue string
	}{
		{"https://github.com/owner/repo", "https://github.com/owner/repo.git", true, ""},
		{"github.com/owner/repo.git", "https://github.com/owner/repo.git", true, ""},
		{"https://www.github.com/owner/repo/", "https://github.com/owner/repo.git", true, ""},
		{"https://github.com/owner/repo/tree/main/src", "https://github.com/owner/repo.git", true, submission.IssueStrippedBranchRef},
		{"https://owner.github.io/site", "", false, submission.IssueGitHubPages},
		{"https://gitlab.com/owner/repo", "", false, submission.IssueNotGitHub + ": gitlab.com"},
		{"https://github.com/owner", "", false, submission.IssueInvalidURLFormat},
		{"", "", false, submission.IssueEmptyURL},
	}
	for _, tt := range tests {
		got := submission.ClassifyGitHubURL(tt.raw)
		if got.CloneURL != tt.clone || got.Valid != tt.valid {
			t.Fatalf("ClassifyGitHubURL(%q) = %+v", tt.raw, got)
		}
		if tt.hasIssue != "" && !contains(got.Issues, tt.hasIssue) {
			t.Fatalf("ClassifyGitHubURL(%q) issues %v, want %q", tt.raw, got.Issues, tt.hasIssue)
		}
	}
}

func TestClassifyVideoURL(t *testing.T) {
	tests := []struct {
		raw      string
		platform submission.Platform
		valid    bool
	}{
		{"https://www.youtube.com/watch?v=abc", submission.PlatformYouTube, true},
		{"https://youtu.be/abc", submission.PlatformYouTube, true},
		{"https://www.loom.com/share/x", submission.PlatformLoom, true},
		{"https://drive.google.com/file/d/abc123/view", submission.PlatformGoogleDrive, true},
		{"https://screen.studio/share/uploading-x", submission.PlatformScreenStudio, false},
		{"https://videos.acme.dev/demo.mp4", submission.PlatformOther, true},
		{"https://example.com/demo", submission.PlatformUnknown, false},
		{"not a url", submission.PlatformUnknown, false},
		{"", submission.PlatformUnknown, false},
	}
	for _, tt := range tests {
		got := submission.ClassifyVideoURL(tt.raw)
		if got.Platform != tt.platform || got.Valid != tt.valid {
			t.Fatalf("ClassifyVideoURL(%q) = %+v", tt.raw, got)
		}
	}
}

func TestGoogleDriveFileID(t *testing.T) {
	if id, ok := submission.GoogleDriveFileID("https://drive.google.com/file/d/1AbC_x-9/view?usp=sharing"); !ok || id != "1AbC_x-9" {
		t.Fatalf("unexpected id %q ok=%v", id, ok)
	}
	if id, ok := submission.GoogleDriveFileID("https://drive.google.com/open?id=XYZ"); !ok || id != "XYZ" {
		t.Fatalf("unexpected id %q ok=%v", id, ok)
	}
	if _, ok := submission.GoogleDriveFileID("https://youtu.be/abc"); ok {
		t.Fatal("expected no id")
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestSubmissionURLHelpers(t *testing.T) {
	sub := submission.Submission{
		CloneURL: "https://github.com/a/b.git",
		VideoURL: "https://example.com/video",
		Issues:   []string{"github:stripped_branch_ref", "video:placeholder_url"},
	}
	if !sub.Cloneable() {
		t.Fatal("expected cloneable submission")
	}
	if sub.VideoDownloadable() {
		t.Fatal("placeholder video must not be downloadable")
	}
	if got := sub.IssuesFor("video"); len(got) != 1 || got[0] != submission.IssuePlaceholderURL {
		t.Fatalf("IssuesFor(video) = %v", got)
	}
	if got := sub.IssuesFor("github"); len(got) != 1 || got[0] != submission.IssueStrippedBranchRef {
		t.Fatalf("IssuesFor(github) = %v", got)
	}
}
