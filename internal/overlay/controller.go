package overlay

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned by SceneController implementations when a
// named element is not part of the scene.
var ErrElementNotFound = errors.New("overlay: element not found in scene")

// Geometry is an element's on-screen box in canvas pixels.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right is the box's right edge.
func (g Geometry) Right() float64 {
	return g.X + g.Width
}

//go:generate mockgen -destination=overlaytest/mock_controller.go -package=overlaytest github.com/nerrad567/overlay-core/internal/overlay SceneController

// SceneController is the remote production switcher. Every call may fail;
// the adapter treats each failure on its own and carries on.
type SceneController interface {
	// SetProgramScene switches the live output.
	SetProgramScene(ctx context.Context, scene string) error

	// SetPreviewScene enables studio mode and loads scene into preview.
	SetPreviewScene(ctx context.Context, scene string) error

	// SetText replaces the text of a text input.
	SetText(ctx context.Context, input, text string) error

	// SetStreamURL points a media input at a stream.
	SetStreamURL(ctx context.Context, input, url string) error

	// GetElementGeometry returns the box of element in scene, or
	// ErrElementNotFound.
	GetElementGeometry(ctx context.Context, scene, element string) (Geometry, error)

	// SetElementGeometry moves element in scene.
	SetElementGeometry(ctx context.Context, scene, element string, g Geometry) error
}
