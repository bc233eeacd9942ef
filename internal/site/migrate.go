package site

// AboutSchemaVersion is the current shape of the About payload:
// {schemaVersion, title, text, imageUrl, highlights[{title,text}]}.
// Version 1 stored flat "mission" and "vision" strings.
const AboutSchemaVersion = 2

// Migrate upgrades section payloads stored in older shapes. It returns a new
// document and whether anything changed; doc itself is not modified.
func Migrate(doc Document) (Document, bool) {
	if doc == nil {
		return nil, false
	}
	out := doc.Clone()
	changed := false
	if about, ok := out[string(About)].(map[string]any); ok {
		if migrated, did := migrateAbout(about); did {
			out[string(About)] = migrated
			changed = true
		}
	}
	return out, changed
}

func migrateAbout(about map[string]any) (map[string]any, bool) {
	if v, ok := about["schemaVersion"].(float64); ok && int(v) >= AboutSchemaVersion {
		return about, false
	}
	mission, hasMission := about["mission"].(string)
	vision, hasVision := about["vision"].(string)
	if !hasMission && !hasVision {
		about["schemaVersion"] = float64(AboutSchemaVersion)
		return about, true
	}
	highlights, _ := about["highlights"].([]any)
	if hasMission && mission != "" {
		highlights = append(highlights, map[string]any{"title": "Our Mission", "text": mission})
	}
	if hasVision && vision != "" {
		highlights = append(highlights, map[string]any{"title": "Our Vision", "text": vision})
	}
	delete(about, "mission")
	delete(about, "vision")
	if _, ok := about["title"]; !ok {
		about["title"] = "About Us"
	}
	if _, ok := about["text"]; !ok {
		about["text"] = ""
	}
	about["highlights"] = highlights
	about["schemaVersion"] = float64(AboutSchemaVersion)
	return about, true
}
