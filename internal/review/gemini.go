package review

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hackreview/internal/config"
	"hackreview/internal/services"
	"hackreview/internal/services/llm"
)

const (
	geminiAPIVersion = "v1beta"
	videoMIMEType    = "video/mp4"

	fileStateActive     = "ACTIVE"
	fileStateProcessing = "PROCESSING"
	fileStateFailed     = "FAILED"
)

// geminiReviewer talks to the generateContent REST API. Small videos travel
// inline; larger ones go through the resumable File API upload.
type geminiReviewer struct {
	cfg    config.LLMConfig
	client *llm.Client
	opts   settings
}

func newGemini(cfg config.LLMConfig, s settings) *geminiReviewer {
	return &geminiReviewer{cfg: cfg, client: s.client(cfg.TimeoutSeconds), opts: s}
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlob     `json:"inline_data,omitempty"`
	FileData   *geminiFileData `json:"file_data,omitempty"`
}

type geminiBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiFileData struct {
	MIMEType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata geminiUsage `json:"usageMetadata"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	State    string `json:"state"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *geminiReviewer) Name() string { return config.ProviderGemini }

// Review implements CodeReviewer.
func (g *geminiReviewer) Review(ctx context.Context, input CodeInput) (CodeResult, error) {
	const op = "gemini generate content"
	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: codeReviewSystemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: BuildCodeReviewPrompt(input)}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMIMEType: "application/json",
			MaxOutputTokens:  g.cfg.MaxTokens,
		},
	}
	text, usage, err := g.generate(ctx, op, req)
	if err != nil {
		return CodeResult{}, err
	}
	result, err := parseCodeReview(ctx, op, text, input.Criteria)
	if err != nil {
		return CodeResult{}, err
	}
	result.Provider = config.ProviderGemini
	result.Model = g.cfg.Model
	result.InputTokens = usage.PromptTokenCount
	result.OutputTokens = usage.CandidatesTokenCount
	return result, nil
}

// VideoReview analyzes one demo video.
func (g *geminiReviewer) VideoReview(ctx context.Context, input VideoInput) (VideoResult, error) {
	const op = "gemini video analysis"
	info, err := os.Stat(input.VideoPath)
	if err != nil {
		return VideoResult{}, services.Wrap(services.ErrUnavailable, stageOf(ctx), op, "video file missing", err)
	}

	var videoPart geminiPart
	if info.Size() <= g.opts.inlineLimit {
		data, err := os.ReadFile(input.VideoPath)
		if err != nil {
			return VideoResult{}, services.Wrap(services.ErrUnavailable, stageOf(ctx), op, "read video", err)
		}
		videoPart.InlineData = &geminiBlob{MIMEType: videoMIMEType, Data: base64.StdEncoding.EncodeToString(data)}
	} else {
		file, err := g.upload(ctx, input.VideoPath, info.Size())
		if err != nil {
			return VideoResult{}, err
		}
		defer g.deleteFile(context.WithoutCancel(ctx), file.Name)
		file, err = g.waitActive(ctx, file)
		if err != nil {
			return VideoResult{}, err
		}
		videoPart.FileData = &geminiFileData{MIMEType: videoMIMEType, FileURI: file.URI}
	}

	req := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{videoPart, {Text: BuildVideoPrompt(input)}},
		}},
		GenerationConfig: geminiGenerationConfig{ResponseMIMEType: "application/json"},
	}
	text, _, err := g.generate(ctx, op, req)
	if err != nil {
		return VideoResult{}, err
	}
	result, err := parseVideoReview(ctx, op, text)
	if err != nil {
		return VideoResult{}, err
	}
	result.Provider = config.ProviderGemini
	result.Model = g.cfg.Model
	return result, nil
}

func (g *geminiReviewer) generate(ctx context.Context, op string, req geminiRequest) (string, geminiUsage, error) {
	var resp geminiResponse
	endpoint := g.apiURL(fmt.Sprintf("%s/models/%s:generateContent", geminiAPIVersion, url.PathEscape(g.cfg.Model)))
	body, err := g.client.PostJSON(ctx, endpoint, g.headers(), req)
	if err != nil {
		return "", resp.UsageMetadata, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", resp.UsageMetadata, llm.InvalidResponse(ctx, op, body, err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", resp.UsageMetadata, llm.InvalidResponse(ctx, op, body, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	var text strings.Builder
	finish := ""
	for _, candidate := range resp.Candidates {
		finish = candidate.FinishReason
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", resp.UsageMetadata, llm.InvalidResponse(ctx, op, body, fmt.Errorf("empty content (finish_reason=%q)", finish))
	}
	return text.String(), resp.UsageMetadata, nil
}

// upload starts a resumable upload session and sends the whole file in one
// finalize request.
func (g *geminiReviewer) upload(ctx context.Context, path string, size int64) (geminiFile, error) {
	const op = "gemini file upload"
	stage := stageOf(ctx)
	start := map[string]any{"file": map[string]string{"display_name": filepath.Base(path)}}
	startBody, err := json.Marshal(start)
	if err != nil {
		return geminiFile{}, fmt.Errorf("%s: encode: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL("upload/"+geminiAPIVersion+"/files"), bytes.NewReader(startBody))
	if err != nil {
		return geminiFile{}, services.Wrap(services.ErrConfiguration, stage, op, "build request", err)
	}
	for key, value := range g.headers() {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", videoMIMEType)
	header, body, err := g.client.Do(req)
	if err != nil {
		return geminiFile{}, err
	}
	uploadURL := header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return geminiFile{}, llm.InvalidResponse(ctx, op, body, errors.New("missing upload url"))
	}

	file, err := os.Open(path)
	if err != nil {
		return geminiFile{}, services.Wrap(services.ErrUnavailable, stage, op, "open video", err)
	}
	defer file.Close()
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, file)
	if err != nil {
		return geminiFile{}, services.Wrap(services.ErrConfiguration, stage, op, "build upload request", err)
	}
	req.ContentLength = size
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	_, body, err = g.client.Do(req)
	if err != nil {
		return geminiFile{}, err
	}
	var uploaded struct {
		File geminiFile `json:"file"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return geminiFile{}, llm.InvalidResponse(ctx, op, body, err)
	}
	if uploaded.File.Name == "" {
		return geminiFile{}, llm.InvalidResponse(ctx, op, body, errors.New("upload returned no file name"))
	}
	return uploaded.File, nil
}

// waitActive polls the uploaded file until the service has processed it.
func (g *geminiReviewer) waitActive(ctx context.Context, file geminiFile) (geminiFile, error) {
	const op = "gemini file status"
	for poll := 0; ; poll++ {
		switch file.State {
		case fileStateActive:
			return file, nil
		case fileStateFailed:
			detail := "video processing failed"
			if file.Error != nil && file.Error.Message != "" {
				detail += ": " + file.Error.Message
			}
			return geminiFile{}, services.Wrap(services.ErrUnavailable, stageOf(ctx), op, detail, nil)
		case "", fileStateProcessing:
		default:
			return geminiFile{}, llm.InvalidResponse(ctx, op, nil, fmt.Errorf("unexpected file state %q", file.State))
		}
		if poll >= g.opts.maxPolls {
			return geminiFile{}, services.Wrap(services.ErrTimeout, stageOf(ctx), op, fmt.Sprintf("file still processing after %d polls", poll), nil)
		}
		if err := g.opts.sleep(ctx, g.opts.pollInterval); err != nil {
			return geminiFile{}, err
		}
		next, err := g.getFile(ctx, file.Name)
		if err != nil {
			return geminiFile{}, err
		}
		file = next
	}
}

func (g *geminiReviewer) getFile(ctx context.Context, name string) (geminiFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL(geminiAPIVersion+"/"+name), nil)
	if err != nil {
		return geminiFile{}, services.Wrap(services.ErrConfiguration, stageOf(ctx), "gemini file status", "build request", err)
	}
	for key, value := range g.headers() {
		req.Header.Set(key, value)
	}
	_, body, err := g.client.Do(req)
	if err != nil {
		return geminiFile{}, err
	}
	var file geminiFile
	if err := json.Unmarshal(body, &file); err != nil {
		return geminiFile{}, llm.InvalidResponse(ctx, "gemini file status", body, err)
	}
	return file, nil
}

// deleteFile is best effort; uploaded files also expire on their own.
func (g *geminiReviewer) deleteFile(ctx context.Context, name string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.apiURL(geminiAPIVersion+"/"+name), nil)
	if err != nil {
		return
	}
	for key, value := range g.headers() {
		req.Header.Set(key, value)
	}
	_, _, _ = g.client.Do(req)
}

func (g *geminiReviewer) headers() map[string]string {
	return map[string]string{"x-goog-api-key": g.cfg.APIKey}
}

func (g *geminiReviewer) apiURL(path string) string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// geminiVideo exposes the gemini reviewer through VideoReviewer, whose
// Review method collides with CodeReviewer's.
type geminiVideo struct {
	*geminiReviewer
}

func (v geminiVideo) Review(ctx context.Context, input VideoInput) (VideoResult, error) {
	return v.VideoReview(ctx, input)
}

func stageOf(ctx context.Context) string {
	stage, _ := services.StageFromContext(ctx)
	return stage
}
