package ir

// Version constants for the persisted document and the application.
const (
	// DocumentVersion is the site-css.json schema version.
	DocumentVersion = 1

	// AppVersion is the cloudywindow version.
	AppVersion = "0.1.0"
)
