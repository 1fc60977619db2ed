// ABOUTME: Vertex AI RAG responder for the chat endpoint
// ABOUTME: Grounds Gemini generation on the managed RAG corpus via the retrieval tool

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/gems-agent/backend/config"
)

// Responder produces an agent reply for one user message. The handler layer
// treats it as an opaque collaborator: any error or blank reply is a
// transport failure.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}

// agentKeywords marks questions about the agent itself (English and
// Norwegian). Those are answered from the system instruction alone, without
// touching the RAG corpus.
var agentKeywords = []string{
	// English
	"what is this", "what is gems", "what are you", "who are you",
	"what can you do", "what do you do", "what is your purpose",
	"what is your role", "what is your function", "what are you for",
	"tell me about yourself", "describe yourself", "introduce yourself",
	// Norwegian
	"hva er dette", "hva er gems", "hva er du", "hvem er du",
	"hva kan du gjøre", "hva gjør du", "hva er ditt formål",
	"hva er din rolle", "hva er din funksjon", "fortell om deg selv",
	"beskriv deg selv", "introduser deg selv",
}

var englishWords = []string{
	"what", "who", "where", "when", "why", "how", "is", "are", "can", "will",
	"the", "a", "an", "and", "or", "but", "hello", "hi", "please", "thank",
	"tell", "describe", "introduce",
}

var norwegianWords = []string{
	"hva", "hvem", "hvor", "når", "hvorfor", "hvordan", "er", "kan", "vil",
	"og", "eller", "men", "hei", "hallo", "takk", "vær", "snill",
	"fortell", "beskriv", "introduser",
}

// isAboutAgentItself reports whether the question asks about the agent
// rather than company data.
func isAboutAgentItself(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, kw := range agentKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// detectLanguage picks the reply language from common-word hits.
// Norwegian is the default when the signal is ambiguous.
func detectLanguage(query string) string {
	q := strings.ToLower(query)
	english := containsAnyWord(q, englishWords)
	norwegian := containsAnyWord(q, norwegianWords)

	if english && !norwegian {
		return "en"
	}
	return "no"
}

func containsAnyWord(q string, words []string) bool {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '?' || r == '!' || r == '.' || r == ','
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

// fallbackReply is the canned self-description used when generation is not
// possible for an agent self-question.
func fallbackReply(lang string) string {
	if lang == "en" {
		return "I am GEMS Agent, an AI assistant for resource management, sales enablement, market analysis, and operational automation. I help transform company data into actionable insights."
	}
	return "Jeg er GEMS Agent, en AI-assistent for ressursforvaltning, salgsstøtte, markedanalyse og operasjonsautomatisering. Jeg hjelper til med å transformere selskapsdata til handlingsrettede innsikter."
}

// noContextReply tells the user nothing relevant came back from the corpus.
func noContextReply(lang string) string {
	if lang == "en" {
		return "Sorry, I could not find relevant information in the knowledge base to answer your question."
	}
	return "Beklager, jeg fant ikke relevant informasjon i kunnskapsbasen for å svare på spørsmålet ditt."
}

// buildPrompt wraps the user question with reply-language instructions in
// the question's language.
func buildPrompt(query, lang string) string {
	if lang == "en" {
		return fmt.Sprintf("User question: %s\n\nInstructions:\n- If retrieved information is relevant to the question, use it to provide a comprehensive answer.\n- If it is not relevant, clearly state that and answer based on your role as GEMS Agent.\n- Please respond in English.\n- Be professional and precise.", query)
	}
	return fmt.Sprintf("Brukerens spørsmål: %s\n\nInstruksjoner:\n- Hvis hentet informasjon er relevant for spørsmålet, bruk den til å gi et omfattende svar.\n- Hvis den ikke er relevant, si det tydelig og svar basert på din rolle som GEMS Agent.\n- Vennligst svar på norsk.\n- Vær profesjonell og presis.", query)
}

// modelPriority returns the generation models to try, configured model
// first, duplicates removed. Flash models are deliberately absent: they
// produced poor-quality answers against this corpus.
func modelPriority(configured string) []string {
	candidates := []string{
		configured,
		"gemini-2.5-pro",
		"gemini-2.0-pro",
		"gemini-1.5-pro",
		"gemini-pro",
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, m := range candidates {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// VertexResponder calls Gemini on Vertex AI with the RAG corpus attached as
// a retrieval tool. Everything past the API call is owned by Google; this
// type only shapes the request and unwraps the reply.
type VertexResponder struct {
	client *genai.Client
	cfg    *config.Config
}

// NewVertexResponder creates a responder bound to the configured project,
// location, and corpus.
func NewVertexResponder(ctx context.Context, cfg *config.Config) (*VertexResponder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  cfg.Project,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	return &VertexResponder{client: client, cfg: cfg}, nil
}

// Reply produces the agent's answer to one user message.
func (v *VertexResponder) Reply(ctx context.Context, message string) (string, error) {
	query := strings.TrimSpace(message)
	lang := detectLanguage(query)

	if isAboutAgentItself(query) {
		slog.Debug("Agent self-question, skipping retrieval", "lang", lang)
		reply, err := v.generate(ctx, buildPrompt(query, lang), false)
		if err != nil || strings.TrimSpace(reply) == "" {
			if err != nil {
				slog.Warn("Generation failed for self-question, using canned reply", "error", err)
			}
			return fallbackReply(lang), nil
		}
		return strings.TrimSpace(reply), nil
	}

	reply, err := v.generate(ctx, buildPrompt(query, lang), true)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return noContextReply(lang), nil
	}
	return strings.TrimSpace(reply), nil
}

// generate runs the model priority list until one produces a response.
// withRetrieval attaches the RAG corpus as a grounding tool.
func (v *VertexResponder) generate(ctx context.Context, prompt string, withRetrieval bool) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(v.cfg.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
		TopP:              genai.Ptr[float32](0.95),
		TopK:              genai.Ptr[float32](40),
		MaxOutputTokens:   2048,
	}

	if withRetrieval {
		cfg.Tools = []*genai.Tool{{
			Retrieval: &genai.Retrieval{
				VertexRAGStore: &genai.VertexRAGStore{
					RAGResources: []*genai.VertexRAGStoreRAGResource{{
						RAGCorpus: v.cfg.CorpusName(),
					}},
					RAGRetrievalConfig: &genai.RAGRetrievalConfig{
						TopK: genai.Ptr(int32(v.cfg.RAGTopK)),
						HybridSearch: &genai.RAGRetrievalConfigHybridSearch{
							Alpha: genai.Ptr(float32(v.cfg.RAGHybridAlpha)),
						},
					},
				},
			},
		}}
	}

	var lastErr error
	for _, model := range modelPriority(v.cfg.GeminiModel) {
		resp, err := v.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err != nil {
			// Model not available in this region, or a transient API
			// failure; try the next candidate.
			slog.Debug("Model unavailable, trying next", "model", model, "error", err)
			lastErr = err
			continue
		}

		slog.Debug("Generated reply", "model", model)
		return resp.Text(), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no generation model configured")
	}
	return "", fmt.Errorf("all generation models failed: %w", lastErr)
}
