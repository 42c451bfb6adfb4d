package models

// Aspect is the width/height ratio of a piece of media.
type Aspect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var (
	// DefaultAspect is used when the metadata service cannot be reached.
	DefaultAspect = Aspect{Width: 16, Height: 9}
	// SquareAspect is carried by a closed session.
	SquareAspect = Aspect{Width: 1, Height: 1}
)

// Valid reports whether both components are positive.
func (a Aspect) Valid() bool {
	return a.Width > 0 && a.Height > 0
}

// ContentSession is the authoritative record of the loaded media item.
// It is replaced wholesale on load and close.
type ContentSession struct {
	Active   bool    `json:"active"`
	ID       string  `json:"id"`
	Aspect   Aspect  `json:"aspect"`
	LoadedAt float64 `json:"loaded_at"`
}

// ClosedSession returns the session held while nothing is loaded.
func ClosedSession() ContentSession {
	return ContentSession{Active: false, ID: "", Aspect: SquareAspect}
}

// NewContentSession returns an active session for id.
func NewContentSession(id string, aspect Aspect, loadedAt float64) ContentSession {
	if !aspect.Valid() {
		aspect = DefaultAspect
	}
	return ContentSession{Active: true, ID: id, Aspect: aspect, LoadedAt: loadedAt}
}
