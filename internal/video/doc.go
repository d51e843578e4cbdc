// Package video downloads submission demo videos.
//
// Google Drive share links are fetched directly over HTTP first; everything
// else (and Drive links Drive refuses to serve) goes through yt-dlp. Every
// download is probed with ffprobe and videos longer than the configured
// maximum get a trimmed 720p copy that is uploaded for analysis instead of
// the original.
package video
