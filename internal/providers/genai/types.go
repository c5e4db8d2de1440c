package genai

// Part is one segment of a multimodal request or response. It is either a
// TextPart or an ImagePart.
type Part interface {
	isPart()
}

// TextPart carries plain text.
type TextPart struct {
	Text string
}

// ImagePart carries inline binary data: a declared media type plus the base64
// encoded body.
type ImagePart struct {
	MediaType string
	Data      string
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}

// Request is a single-turn multimodal request. Part order is preserved on the
// wire.
type Request struct {
	Parts []Part
}

// Candidate is one generated alternative.
type Candidate struct {
	Parts        []Part
	FinishReason string
}

// Response is the decoded generateContent result.
type Response struct {
	Candidates     []Candidate
	ModelVersion   string
	PromptFeedback string
}

// FirstImage scans candidates and their parts in order and returns the first
// image part with data. Text parts are skipped.
func (r *Response) FirstImage() (ImagePart, bool) {
	if r == nil {
		return ImagePart{}, false
	}
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Parts {
			switch p := part.(type) {
			case ImagePart:
				if p.Data != "" {
					return p, true
				}
			case TextPart:
				continue
			}
		}
	}
	return ImagePart{}, false
}

// Texts returns every text part in scan order.
func (r *Response) Texts() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Parts {
			if p, ok := part.(TextPart); ok && p.Text != "" {
				out = append(out, p.Text)
			}
		}
	}
	return out
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	ModelVersion   string                `json:"modelVersion,omitempty"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

func encodeRequest(req Request) geminiGenerateContentRequest {
	parts := make([]geminiPart, 0, len(req.Parts))
	for _, part := range req.Parts {
		switch p := part.(type) {
		case TextPart:
			parts = append(parts, geminiPart{Text: p.Text})
		case ImagePart:
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: p.MediaType, Data: p.Data}})
		}
	}
	return geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
}

func decodeResponse(raw geminiGenerateContentResponse) *Response {
	out := &Response{ModelVersion: raw.ModelVersion}
	if raw.PromptFeedback != nil {
		out.PromptFeedback = raw.PromptFeedback.BlockReason
	}
	for _, candidate := range raw.Candidates {
		c := Candidate{FinishReason: candidate.FinishReason}
		for _, part := range candidate.Content.Parts {
			switch {
			case part.InlineData != nil && part.InlineData.Data != "":
				c.Parts = append(c.Parts, ImagePart{MediaType: part.InlineData.MimeType, Data: part.InlineData.Data})
			case part.Text != "":
				c.Parts = append(c.Parts, TextPart{Text: part.Text})
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}
