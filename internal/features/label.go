package features

// LabelEncoder maps category strings to the integer codes a model was trained on.
type LabelEncoder struct {
	classes  []string
	index    map[string]int
	fallback int
}

// NewLabelEncoder creates an encoder over classes in training order. Unseen
// values encode to defaultClass, or to 0 when defaultClass is not a class.
func NewLabelEncoder(classes []string, defaultClass string) *LabelEncoder {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, ok := index[c]; !ok {
			index[c] = i
		}
	}

	fallback, ok := index[defaultClass]
	if !ok {
		fallback = 0
	}

	return &LabelEncoder{
		classes:  append([]string(nil), classes...),
		index:    index,
		fallback: fallback,
	}
}

// Encode returns the code for v. It never fails.
func (e *LabelEncoder) Encode(v string) int {
	if i, ok := e.index[v]; ok {
		return i
	}
	return e.fallback
}

// Classes returns the class list in training order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}
