package projection

// Field maps a projection attribute onto its (possibly nested) path in the
// authoritative document.
type Field struct {
	Name string
	Path string
}

func same(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Path: n}
	}
	return out
}

func profile(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Path: "profile." + n}
	}
	return out
}

// Schema lists, per collection, the fields mirrored into the search
// projection. Anything else stays in the authoritative store only.
type Schema map[string][]Field

// DefaultSchema is the projection whitelist of the marketplace collections.
// Contact details, payment, memo and denormalized id lists are never projected.
func DefaultSchema() Schema {
	return Schema{
		"matters": same(
			"uid", "index", "display", "status", "title", "position", "handles",
			"location", "remote", "period", "costs", "createAt", "updateAt",
		),
		"resources": same(
			"uid", "index", "display", "status", "position", "handles", "location",
			"remote", "period", "costs", "name", "belong", "createAt", "updateAt",
		),
		"companys": append(
			same("uid", "status", "type", "createAt"),
			profile("name", "person", "body", "url", "address", "icon", "visibility")...,
		),
		"persons": append(
			same("uid", "status", "createAt"),
			profile("name", "body", "position", "icon", "visibility")...,
		),
	}
}

// Projected reports whether collection has a projection at all.
func (s Schema) Projected(collection string) bool {
	_, ok := s[collection]
	return ok
}

// Fields returns the projected fields of collection.
func (s Schema) Fields(collection string) []Field {
	return s[collection]
}
