package realtime

// Named realtime streams used across the application.
const (
	// StreamActivity mirrors ephemeral activity sessions to the widget surface.
	StreamActivity = "activity"
	// StreamLibrary announces unassigned-recent and folder changes to UI surfaces.
	StreamLibrary = "library"
)
