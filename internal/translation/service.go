package translation

import "context"

// Provider machine-translates one text between two languages.
type Provider interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
	Name() string
}

// TranslateRequest describes one translation request. Languages are BCP-47
// tags as stored on project languages ("en", "pt-BR").
type TranslateRequest struct {
	Text       string
	SourceLang string
	TargetLang string
}

// TranslateResponse contains translated text and provider metadata.
type TranslateResponse struct {
	Text         string
	SourceLang   string
	TargetLang   string
	ProviderName string
	LatencyMs    int64
}
