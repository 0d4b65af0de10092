package entity

// Rect is an element's bounding box in CSS pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Element is one interactive element discovered on the page.
// Selector is the primary CSS locator; AltSelectors is the ordered fallback
// ladder (id, name, data attr, aria-label, engine attr, href, class) consumed
// only by the retry engine.
type Element struct {
	Tag             string   `json:"tag"`
	Kind            string   `json:"kind"`
	Text            string   `json:"text"`
	Selector        string   `json:"selector"`
	AltSelectors    []string `json:"alt_selectors,omitempty"`
	Href            string   `json:"href,omitempty"`
	Rect            Rect     `json:"rect"`
	IsConsentButton bool     `json:"is_consent_button,omitempty"`
}

// Overlay describes a blocking modal (consent dialog, cookie banner) found
// during extraction.
type Overlay struct {
	Detected bool   `json:"detected"`
	Kind     string `json:"kind,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Viewport is the page's visible size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PageState is a fresh snapshot of the page taken at the start of a step.
// It is a value object: produced once per step, never mutated in place.
type PageState struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
	Viewport Viewport  `json:"viewport"`
	Overlay  *Overlay  `json:"overlay,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// FindBySelector returns the element whose primary selector matches, if any.
func (s PageState) FindBySelector(selector string) (Element, bool) {
	for _, el := range s.Elements {
		if el.Selector == selector {
			return el, true
		}
	}
	return Element{}, false
}
