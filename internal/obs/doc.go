// Package obs is a minimal obs-websocket v5 client.
//
// It covers the requests the overlay needs: program and preview scene
// switching, text and media input settings, scene item placement, the
// scene list and source screenshots. Client satisfies
// overlay.SceneController.
package obs
