package notify

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type entry struct {
	Title    string          `yaml:"title"`
	Body     string          `yaml:"body"`
	Audience models.Audience `yaml:"audience"`
	Severity models.Severity `yaml:"severity"`
	TTL      string          `yaml:"ttl,omitempty"`

	body *template.Template
	ttl  time.Duration
}

// Catalog хранит шаблоны уведомлений по событиям.
type Catalog struct {
	entries map[Event]*entry
}

// DefaultCatalog загружает встроенный каталог.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog разбирает каталог в формате YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	raw := map[Event]*entry{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("notify: parse catalog: %w", err)
	}
	for event, e := range raw {
		if e == nil || e.Title == "" || e.Body == "" {
			return nil, fmt.Errorf("notify: event %s: title and body are required", event)
		}
		tmpl, err := template.New(string(event)).Option("missingkey=error").Parse(e.Body)
		if err != nil {
			return nil, fmt.Errorf("notify: event %s: %w", event, err)
		}
		e.body = tmpl
		if e.Audience == "" {
			e.Audience = models.AudienceUser
		}
		if e.Severity == "" {
			e.Severity = models.SeverityInfo
		}
		if e.TTL != "" {
			ttl, err := time.ParseDuration(e.TTL)
			if err != nil {
				return nil, fmt.Errorf("notify: event %s ttl: %w", event, err)
			}
			e.ttl = ttl
		}
	}
	return &Catalog{entries: raw}, nil
}

// Missing возвращает события без шаблона.
func (c *Catalog) Missing(events []Event) []Event {
	var missing []Event
	for _, event := range events {
		if _, ok := c.entries[event]; !ok {
			missing = append(missing, event)
		}
	}
	return missing
}

// Render собирает уведомление по сообщению.
func (c *Catalog) Render(msg Message, now time.Time) (models.Notice, error) {
	e, ok := c.entries[msg.Event]
	if !ok {
		return models.Notice{}, fmt.Errorf("notify: no template for event %s", msg.Event)
	}
	data := msg.Data
	if data == nil {
		data = map[string]any{}
	}
	var body strings.Builder
	if err := e.body.Execute(&body, data); err != nil {
		return models.Notice{}, fmt.Errorf("notify: render %s: %w", msg.Event, err)
	}
	notice := models.Notice{
		Event:        string(msg.Event),
		Title:        e.Title,
		Body:         body.String(),
		Audience:     e.Audience,
		Severity:     e.Severity,
		TargetUserID: msg.TargetUserID,
		ActiveFrom:   now,
		CreatedAt:    now,
	}
	if e.ttl > 0 {
		until := now.Add(e.ttl)
		notice.ActiveUntil = &until
	}
	return notice, nil
}
