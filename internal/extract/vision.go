package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/provider"
)

var languageNames = map[string]string{
	"eng": "English",
	"ara": "Arabic",
	"fra": "French",
	"deu": "German",
	"spa": "Spanish",
	"urd": "Urdu",
	"fas": "Persian",
}

// VisionOCR recognizes page images with an OpenAI vision-capable chat model.
// Several pages are sent per request and the model answers with strict JSON.
type VisionOCR struct {
	client    *openai.Client
	model     string
	batchSize int
	logger    *zap.Logger
}

// VisionOption configures a VisionOCR.
type VisionOption func(*VisionOCR)

// WithVisionLogger sets the logger.
func WithVisionLogger(l *zap.Logger) VisionOption {
	return func(v *VisionOCR) {
		v.logger = l
	}
}

// WithBatchSize sets how many pages are sent per request.
func WithBatchSize(n int) VisionOption {
	return func(v *VisionOCR) {
		if n > 0 {
			v.batchSize = n
		}
	}
}

// NewVisionOCR creates a vision OCR engine for model.
func NewVisionOCR(apiKey, baseURL, model string, opts ...VisionOption) (*VisionOCR, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision ocr: API key is empty")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	v := &VisionOCR{
		client:    provider.NewOpenAIClient(apiKey, baseURL),
		model:     model,
		batchSize: 3,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// BatchSize returns the number of pages sent per request.
func (v *VisionOCR) BatchSize() int {
	return v.batchSize
}

// Recognize recognizes a single page.
func (v *VisionOCR) Recognize(ctx context.Context, img *PageImage, languageHints []string) (string, error) {
	out, err := v.RecognizeBatch(ctx, []*PageImage{img}, languageHints)
	if err != nil {
		return "", err
	}
	return out[img.Page], nil
}

// RecognizeBatch sends imgs in one request. When the reply is not the expected JSON, the raw
// reply is used as the text of the first page in the batch.
func (v *VisionOCR) RecognizeBatch(ctx context.Context, imgs []*PageImage, languageHints []string) (map[int]string, error) {
	if len(imgs) == 0 {
		return map[int]string{}, nil
	}
	parts := make([]openai.ChatMessagePart, 0, len(imgs)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: visionPrompt(languageHints),
	})
	for _, img := range imgs {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    v.model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, MultiContent: parts}},
	})
	if err != nil {
		return nil, provider.OpenAIError(fmt.Errorf("vision ocr request failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision ocr: empty response")
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)

	out := make(map[int]string, len(imgs))
	pages, ok := parseVisionPages(raw)
	if !ok {
		if v.logger != nil {
			v.logger.Warn("vision ocr returned non-JSON, using raw text",
				zap.Int("first_page", imgs[0].Page),
				zap.Int("pages", len(imgs)))
		}
		out[imgs[0].Page] = raw
		return out, nil
	}
	// Pages in the reply are numbered within the batch; pair them positionally.
	for i, img := range imgs {
		if i < len(pages) {
			out[img.Page] = strings.TrimSpace(pages[i].Text)
		}
	}
	return out, nil
}

type visionPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

func parseVisionPages(raw string) ([]visionPage, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	var body struct {
		Pages []visionPage `json:"pages"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &body); err != nil {
		return nil, false
	}
	return body.Pages, true
}

func visionPrompt(languageHints []string) string {
	langs := make([]string, 0, len(languageHints))
	for _, h := range languageHints {
		if name, ok := languageNames[h]; ok {
			langs = append(langs, name)
		} else {
			langs = append(langs, h)
		}
	}
	keep := "keeping the original language"
	if len(langs) > 0 {
		keep += " (" + strings.Join(langs, "/") + ")"
	}
	return "You will receive one or more page images from a PDF. " +
		"Extract all readable text from EACH page faithfully, " + keep + ". " +
		"Return STRICT JSON ONLY in this format:\n" +
		"{\n" +
		"  \"pages\": [\n" +
		"    {\"page\": 1, \"text\": \"...\"},\n" +
		"    {\"page\": 2, \"text\": \"...\"}\n" +
		"  ]\n" +
		"}\n" +
		"If a page has no text, use empty string."
}
