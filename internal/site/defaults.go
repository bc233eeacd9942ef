package site

// Defaults returns the content shown when no site document exists yet.
// Every call returns a fresh copy.
func Defaults() Document {
	return Document{
		string(HeroSlides): []any{
			map[string]any{
				"id":       "slide-default-1",
				"title":    "Welcome Home",
				"subtitle": "A place to belong, believe and become.",
				"ctaText":  "Plan Your Visit",
				"ctaLink":  "#services",
			},
		},
		string(About): map[string]any{
			"schemaVersion": float64(AboutSchemaVersion),
			"title":         "About Our Church",
			"text":          "We are a community of faith gathering every week to worship, grow and serve our neighbours.",
			"imageUrl":      "",
			"highlights": []any{
				map[string]any{"title": "Our Mission", "text": "To love God, love people and make disciples."},
				map[string]any{"title": "Our Vision", "text": "A church where everyone finds a family."},
			},
		},
		string(Services): []any{
			map[string]any{"id": "service-default-1", "name": "Sunday Worship", "day": "Sunday", "time": "10:00 AM", "description": "Main worship service with children's ministry."},
			map[string]any{"id": "service-default-2", "name": "Midweek Prayer", "day": "Wednesday", "time": "7:00 PM", "description": "Prayer and bible study."},
		},
		string(Sermons):       []any{},
		string(Ministries):    []any{},
		string(Events):        []any{},
		string(Announcements): []any{},
		string(Contact): map[string]any{
			"address": "",
			"phone":   "",
			"email":   "",
			"hours":   "",
		},
		string(LiveStream): map[string]any{
			"enabled": false,
			"url":     "",
			"title":   "Watch Live",
		},
	}
}

// WithDefaults fills sections missing from doc with their default payloads.
func WithDefaults(doc Document) Document {
	out := doc.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range Defaults() {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}
