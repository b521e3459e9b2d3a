package types

// PropertyKind discriminates the variants of a PropertyValue.
type PropertyKind int

const (
	PropertyString PropertyKind = iota
	PropertyNumber
	PropertyBool
	PropertyList
)

// PropertyValue is a tagged variant for graph node and edge properties.
// It replaces free-form interface{} maps so property shapes are checked at
// compile time and values always travel as bound query parameters.
type PropertyValue struct {
	Kind PropertyKind `json:"kind"`
	Str  string       `json:"str,omitempty"`
	Num  float64      `json:"num,omitempty"`
	Bool bool         `json:"bool,omitempty"`
	List []string     `json:"list,omitempty"`
}

// StringProperty returns a string-valued property.
func StringProperty(s string) PropertyValue {
	return PropertyValue{Kind: PropertyString, Str: s}
}

// NumberProperty returns a numeric property.
func NumberProperty(n float64) PropertyValue {
	return PropertyValue{Kind: PropertyNumber, Num: n}
}

// BoolProperty returns a boolean property.
func BoolProperty(b bool) PropertyValue {
	return PropertyValue{Kind: PropertyBool, Bool: b}
}

// ListProperty returns a string-list property.
func ListProperty(items ...string) PropertyValue {
	return PropertyValue{Kind: PropertyList, List: items}
}

// Native converts the property to the representation expected by graph
// driver parameter maps.
func (v PropertyValue) Native() interface{} {
	switch v.Kind {
	case PropertyNumber:
		return v.Num
	case PropertyBool:
		return v.Bool
	case PropertyList:
		return v.List
	default:
		return v.Str
	}
}

// EntityInput describes one typed entity to upsert into the graph overlay.
type EntityInput struct {
	// Key is the caller's logical identifier for the entity within the
	// batch. Relationships reference entities by this key, and it becomes
	// the node's identity property for reuse across calls.
	Key string `json:"key"`

	// Type is the node label (e.g. "Person", "Place"). Must match the
	// graph identifier pattern; labels cannot be bound as parameters.
	Type string `json:"type"`

	// Properties is the entity's property bag.
	Properties map[string]PropertyValue `json:"properties,omitempty"`
}

// RelationshipInput describes one typed edge to create between two entities.
// Both endpoints must resolve to nodes created earlier in the same call or
// already present in the graph, otherwise the edge fails.
type RelationshipInput struct {
	Type    string `json:"type"`
	FromKey string `json:"from_key"`
	ToKey   string `json:"to_key"`

	Properties map[string]PropertyValue `json:"properties,omitempty"`
}
