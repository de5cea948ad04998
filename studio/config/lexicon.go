package config

// Default keyword sets. Config files may replace any of them.
var (
	// Setting nouns count as generation words: naming a place is asking to see it.
	DefaultGenerationVerbs = []string{
		"make", "create", "generate", "animate", "show",
		"scene", "video", "render", "produce", "film",
		"forest", "city", "ocean", "space", "mountain", "desert", "jungle",
	}
	DefaultModificationVerbs = []string{"add", "change", "modify", "include"}

	DefaultSubjects = []string{
		"frog", "cow", "dog", "cat", "bird", "fish", "elephant", "lion", "tiger",
	}
	DefaultActions = []string{
		"dancing", "running", "flying", "swimming", "jumping", "walking",
	}
	DefaultSettings = []string{
		"forest", "city", "ocean", "space", "mountain", "desert", "jungle",
	}
	DefaultAbstractKeywords = []string{"abstract", "geometric"}
)
