// Package schedule turns a free-text request into draft calendar events using
// Gemini through the genai SDK.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/famsched/internal/model"
	"google.golang.org/genai"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("schedule generator not configured")

const defaultModel = "gemini-2.5-flash"

// Config holds generator configuration from environment variables. BaseURL
// overrides the Gemini API endpoint.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Draft is one event proposed by the model. Any field may be empty.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	MemberID    string `json:"memberId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

// Generator calls the model and parses its JSON answer.
type Generator struct {
	config     Config
	httpClient *http.Client
}

func NewGenerator(cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Generator{
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an API key is set.
func (g *Generator) Configured() bool {
	return g.config.APIKey != ""
}

func (g *Generator) client(ctx context.Context) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     g.config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.config.BaseURL}
	}
	return genai.NewClient(ctx, cc)
}

// Generate asks the model to schedule prompt for members, relative to now.
// An answer with no text yields an empty slice.
func (g *Generator) Generate(ctx context.Context, prompt string, members []model.Member, now time.Time) ([]Draft, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	client, err := g.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	result, err := client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction(members, now), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini API request: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return []Draft{}, nil
	}

	var drafts []Draft
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return nil, fmt.Errorf("parse drafts: %w", err)
	}
	return drafts, nil
}

func systemInstruction(members []model.Member, now time.Time) string {
	refs := make([]string, len(members))
	for i, m := range members {
		refs[i] = fmt.Sprintf("%s (ID: %s, age %d)", m.Name, m.ID, m.Age)
	}

	var b strings.Builder
	b.WriteString("You are a smart family scheduling assistant. ")
	b.WriteString("Turn the user's request into a JSON array of calendar events.\n")
	fmt.Fprintf(&b, "Current time: %s.\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Family members: [%s].\n", strings.Join(refs, ", "))
	fmt.Fprintf(&b, "Event types: %s.\n", strings.Join(eventTypes(), ", "))
	b.WriteString("Each event has: title (short), description, type (one of the event types), ")
	b.WriteString("memberId (from the member list, the first member if unclear), ")
	b.WriteString("startTime and endTime (ISO 8601, relative to the current time).")
	return b.String()
}

func eventTypes() []string {
	types := make([]string, len(model.EventTypes))
	for i, t := range model.EventTypes {
		types[i] = string(t)
	}
	return types
}

func responseSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":       str(),
				"description": str(),
				"type":        {Type: genai.TypeString, Enum: eventTypes()},
				"memberId":    str(),
				"startTime":   str(),
				"endTime":     str(),
			},
			Required: []string{"title", "memberId", "startTime", "endTime"},
		},
	}
}

var draftLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ToEvent fills the blanks of d: title "New event", type OTHER, member
// defaultMemberID, start now and end one hour after now.
func (d Draft) ToEvent(defaultMemberID string, now time.Time) model.FamilyEvent {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = "New event"
	}
	memberID := d.MemberID
	if memberID == "" {
		memberID = defaultMemberID
	}

	start, ok := parseDraftTime(d.StartTime, now.Location())
	if !ok {
		start = now
	}
	end, ok := parseDraftTime(d.EndTime, now.Location())
	if !ok {
		end = now.Add(time.Hour)
	}

	return model.FamilyEvent{
		MemberID:    memberID,
		Title:       title,
		Description: d.Description,
		Type:        model.ParseEventType(d.Type),
		StartTime:   start,
		EndTime:     end,
		Status:      model.StatusPending,
	}
}

func parseDraftTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range draftLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
