package calendar

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is a named starter definition consumed at series creation.
// Templates carry defaults only; the caller's input wins on every field.
type Template struct {
	Key             string             `yaml:"key"`
	Title           string             `yaml:"title"`
	Description     string             `yaml:"description"`
	EventType       EventType          `yaml:"event_type"`
	DurationMinutes int                `yaml:"duration_minutes"`
	MeetingProvider MeetingProvider    `yaml:"meeting_provider"`
	Recurrence      *RecurrencePattern `yaml:"recurrence"`
}

// Catalog is a static template lookup. Built-ins can be overridden or
// extended from *.yaml files loaded once at startup; there is no reload and
// no persistence.
type Catalog struct {
	templates map[string]Template
}

// NewCatalog returns a catalog holding only the built-in templates.
func NewCatalog() *Catalog {
	c := &Catalog{templates: make(map[string]Template)}
	for _, t := range builtinTemplates {
		c.templates[t.Key] = t
	}
	return c
}

// NewCatalogWithDir returns the built-in catalog merged with templates from
// *.yaml files in dir, one template per file. A missing directory is valid
// and yields just the built-ins.
func NewCatalogWithDir(dir string) (*Catalog, error) {
	c := NewCatalog()
	if dir == "" {
		return c, nil
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("template dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading template dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading template %q: %w", path, err)
		}
		var t Template
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parsing template %q: %w", path, err)
		}
		if t.Key == "" {
			return nil, fmt.Errorf("template %q has no key", path)
		}
		if t.Title == "" {
			return nil, fmt.Errorf("template %q has no title", path)
		}
		c.templates[t.Key] = t
	}
	return c, nil
}

// Get returns the template for the given key.
func (c *Catalog) Get(key string) (Template, bool) {
	t, ok := c.templates[key]
	return t, ok
}

// All returns every template, sorted by key.
func (c *Catalog) All() []Template {
	out := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// builtinTemplates mirrors the starter events the host application ships.
var builtinTemplates = []Template{
	{
		Key:             "office_hours",
		Title:           "Office Hours",
		Description:     "Weekly office hours for Q&A and coaching",
		EventType:       TypeOfficeHours,
		DurationMinutes: 60,
		MeetingProvider: ProviderZoom,
		Recurrence: &RecurrencePattern{
			Frequency:  FreqWeekly,
			Interval:   1,
			DaysOfWeek: []int{4}, // Thursday
			EndType:    EndNever,
		},
	},
	{
		Key:             "community_call",
		Title:           "Community Call",
		Description:     "Weekly community gathering and discussion",
		EventType:       TypeCommunityCall,
		DurationMinutes: 60,
		MeetingProvider: ProviderZoom,
		Recurrence: &RecurrencePattern{
			Frequency:  FreqWeekly,
			Interval:   1,
			DaysOfWeek: []int{6}, // Saturday
			EndType:    EndNever,
		},
	},
	{
		Key:             "workshop",
		Title:           "Workshop",
		Description:     "Interactive workshop session",
		EventType:       TypeWorkshop,
		DurationMinutes: 90,
		MeetingProvider: ProviderZoom,
		Recurrence: &RecurrencePattern{
			Frequency:   FreqWeekly,
			Interval:    1,
			DaysOfWeek:  []int{1}, // Monday
			EndType:     EndAfterOccurrences,
			Occurrences: 8,
		},
	},
	{
		Key:             "coaching",
		Title:           "Group Coaching",
		Description:     "Group coaching session",
		EventType:       TypeCoaching,
		DurationMinutes: 45,
		MeetingProvider: ProviderZoom,
	},
}
