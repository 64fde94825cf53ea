package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SourceKind selects the fetcher a source is routed to.
type SourceKind string

const (
	SourceCalendar    SourceKind = "calendar"
	SourceSyndication SourceKind = "syndication"
	SourceDiscover    SourceKind = "discover"
)

// Source is one configured content endpoint for a university. Sources are
// static configuration, never persisted.
type Source struct {
	Kind     SourceKind `yaml:"kind"`
	URL      string     `yaml:"url"`
	Category string     `yaml:"category,omitempty"`
}

// University groups a set of sources with the keyword tables used for
// classification and for external book queries.
type University struct {
	Name        string   `yaml:"name"`
	Sources     []Source `yaml:"sources,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	BookQueries []string `yaml:"book_queries,omitempty"`
}

// Sources is the full aggregation configuration: universities, the
// cross-cutting classification tables and the near-duplicate calibration
// constants. Loaded from YAML, with built-in defaults for every section.
type Sources struct {
	Universities []University `yaml:"universities"`

	// Items arriving under one of these categories, or whose title matches
	// one of the keywords, belong to the cross-cutting content class and are
	// fanned out by keyword classification instead of being filed under the
	// literal source university.
	CrosscutCategories []string `yaml:"crosscut_categories"`
	CrosscutKeywords   []string `yaml:"crosscut_keywords"`

	// Display-category keyword groups, scanned against titles in this
	// priority order; first match wins.
	CulturalKeywords   []string `yaml:"cultural_keywords"`
	TourismKeywords    []string `yaml:"tourism_keywords"`
	ConferenceKeywords []string `yaml:"conference_keywords"`
	FallbackCategory   string   `yaml:"fallback_category"`

	// Near-duplicate gate calibration. Both values are empirically chosen
	// and exposed here so they can be tuned against real data.
	TitleOverlap               float64 `yaml:"title_overlap"`
	NearDuplicateWindowMinutes int     `yaml:"near_duplicate_window_minutes"`
}

// NearDuplicateWindow returns the configured time window for the global
// near-duplicate gate.
func (s *Sources) NearDuplicateWindow() time.Duration {
	return time.Duration(s.NearDuplicateWindowMinutes) * time.Minute
}

// UniversityByName returns the configured university or nil.
func (s *Sources) UniversityByName(name string) *University {
	for i := range s.Universities {
		if s.Universities[i].Name == name {
			return &s.Universities[i]
		}
	}
	return nil
}

// UniversityNames returns configured university names in declaration order.
func (s *Sources) UniversityNames() []string {
	names := make([]string, 0, len(s.Universities))
	for _, u := range s.Universities {
		names = append(names, u.Name)
	}
	return names
}

// LoadSources reads the YAML configuration file. A missing file is not an
// error: the built-in defaults are returned so the binary works out of the
// box. Sections left empty in the file are filled from the defaults.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("Sources file not found, using built-in configuration")
			return DefaultSources(), nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var cfg Sources
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	def := DefaultSources()
	if len(cfg.Universities) == 0 {
		cfg.Universities = def.Universities
	}
	if len(cfg.CrosscutCategories) == 0 {
		cfg.CrosscutCategories = def.CrosscutCategories
	}
	if len(cfg.CrosscutKeywords) == 0 {
		cfg.CrosscutKeywords = def.CrosscutKeywords
	}
	if len(cfg.CulturalKeywords) == 0 {
		cfg.CulturalKeywords = def.CulturalKeywords
	}
	if len(cfg.TourismKeywords) == 0 {
		cfg.TourismKeywords = def.TourismKeywords
	}
	if len(cfg.ConferenceKeywords) == 0 {
		cfg.ConferenceKeywords = def.ConferenceKeywords
	}
	if cfg.FallbackCategory == "" {
		cfg.FallbackCategory = def.FallbackCategory
	}
	if cfg.TitleOverlap <= 0 {
		cfg.TitleOverlap = def.TitleOverlap
	}
	if cfg.NearDuplicateWindowMinutes <= 0 {
		cfg.NearDuplicateWindowMinutes = def.NearDuplicateWindowMinutes
	}

	log.Debug().
		Int("universities", len(cfg.Universities)).
		Str("path", path).
		Msg("Loaded sources configuration")

	return &cfg, nil
}

// DefaultSources returns the built-in configuration for the Kraków
// universities the service launched with.
func DefaultSources() *Sources {
	return &Sources{
		Universities: []University{
			{
				Name: "Akademia Górniczo-Hutnicza",
				Sources: []Source{
					{Kind: SourceDiscover, URL: "https://www.agh.edu.pl/wydarzenia", Category: "ogólne"},
					{Kind: SourceDiscover, URL: "https://www.agh.edu.pl/en/calendar", Category: "ogólne"},
					{Kind: SourceDiscover, URL: "https://sd.agh.edu.pl/en/events", Category: "doktoranci"},
				},
				Keywords:    []string{"agh", "górnictwo", "informatyka", "fizyka", "inżynieria", "technologia"},
				BookQueries: []string{"mining engineering", "computer science", "materials science", "physics", "automation engineering"},
			},
			{
				Name: "Politechnika Krakowska",
				Sources: []Source{
					{Kind: SourceDiscover, URL: "https://futurelab.pk.edu.pl/wydarzenia/", Category: "ogólne"},
					{Kind: SourceDiscover, URL: "https://delta.pk.edu.pl/calendar/view.php?view=month", Category: "ogólne"},
				},
				Keywords:    []string{"politechnika", "architektura", "budownictwo", "mechanika", "elektrotechnika"},
				BookQueries: []string{"architecture", "civil engineering", "mechanical engineering", "urban planning"},
			},
			{
				Name: "Uniwersytet Jagielloński",
				Sources: []Source{
					{Kind: SourceDiscover, URL: "https://www.uj.edu.pl/kalendarz", Category: "ogólne"},
				},
				Keywords:    []string{"uj", "jagielloński", "medycyna", "prawo", "fizyka", "chemia", "historia"},
				BookQueries: []string{"law", "medicine", "biology", "physics", "philosophy", "history"},
			},
			{
				Name: "Uniwersytet Ekonomiczny",
				Sources: []Source{
					{Kind: SourceCalendar, URL: "https://granty.uek.krakow.pl/kalendarz/miesiac/?ical=1", Category: "granty"},
					{Kind: SourceSyndication, URL: "https://kpz.uek.krakow.pl/portal/pl/rss.xml", Category: "wydziały"},
					{Kind: SourceDiscover, URL: "https://uek.krakow.pl/artykuly/wydarzenia", Category: "ogólne"},
				},
				Keywords:    []string{"uek", "ekonomia", "finanse", "zarządzanie", "biznes", "marketing"},
				BookQueries: []string{"economics", "finance", "management", "accounting", "marketing"},
			},
			{
				Name: "Akademia Sztuk Pięknych im. Jana Matejki",
				Sources: []Source{
					{Kind: SourceSyndication, URL: "https://www.asp.krakow.pl/category/wydarzenia/feed/", Category: "kultura"},
					{Kind: SourceDiscover, URL: "https://www.asp.krakow.pl/category/wydarzenia/", Category: "kultura"},
				},
				Keywords:    []string{"asp", "sztuka", "malarstwo", "rzeźba", "grafika", "wystawa"},
				BookQueries: []string{"fine arts", "painting", "sculpture", "graphic design", "art history"},
			},
			{
				Name: "Akademia Wychowania Fizycznego im. Bronisława Czecha",
				Sources: []Source{
					{Kind: SourceSyndication, URL: "https://www.akf.krakow.pl/?format=feed&type=rss", Category: "ogólne"},
					{Kind: SourceDiscover, URL: "https://www.akf.krakow.pl/sport/imprezy-sportowe", Category: "sport"},
				},
				Keywords:    []string{"awf", "sport", "trening", "rehabilitacja", "fizjoterapia"},
				BookQueries: []string{"physical education", "sports science", "physiotherapy", "biomechanics"},
			},
		},
		CrosscutCategories: []string{"bilety"},
		CrosscutKeywords:   []string{"kraków |", "bilety", "wernisaż"},
		CulturalKeywords: []string{
			"teatr", "malarstwo", "wystawa", "koncert", "sztuka", "warsztat",
			"galeri", "muzeum", "film", "taniec", "słuchowisk", "oprowadza",
		},
		TourismKeywords:    []string{"wycieczka", "zwiedzanie", "spacer", "rajd"},
		ConferenceKeywords: []string{"konferencja", "seminarium", "sympozjum", "wykład", "debata"},
		FallbackCategory:   "ogólne",

		TitleOverlap:               0.7,
		NearDuplicateWindowMinutes: 60,
	}
}
