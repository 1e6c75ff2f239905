package domain

// Verb is one of the three operations the protocol supports.
type Verb int

const (
	// VerbStore writes a record ("set" on the wire).
	VerbStore Verb = iota + 1
	// VerbFetch reads a record ("get" on the wire).
	VerbFetch
	// VerbRemove deletes a record ("unset" on the wire).
	VerbRemove
)

// String returns the wire name of the verb.
func (v Verb) String() string {
	switch v {
	case VerbStore:
		return "set"
	case VerbFetch:
		return "get"
	case VerbRemove:
		return "unset"
	default:
		return "unknown"
	}
}

// ParseVerb maps a wire verb name onto the closed Verb set.
func ParseVerb(s string) (Verb, bool) {
	switch s {
	case "set":
		return VerbStore, true
	case "get":
		return VerbFetch, true
	case "unset":
		return VerbRemove, true
	default:
		return 0, false
	}
}
