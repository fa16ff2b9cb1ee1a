package tools

// Ident is the strong type for tool identifiers (e.g. "get_current_time").
// Use this type when referencing tools in maps or APIs to avoid accidental
// mixing with free-form strings.
type Ident string
