package model

// SavedSession is a full Result Store snapshot stored in the library.
// Loading one replaces the live store wholesale and resets the run to IDLE.
type SavedSession struct {
	Name      string         `json:"name"`
	Timestamp string         `json:"timestamp"`
	Mode      string         `json:"mode"`
	Results   []ResultRecord `json:"results"`
}

// Library node type constants
const (
	NodeFolder  = "folder"
	NodeSession = "session"
)

// LibraryNode is one entry in the hierarchical session library tree.
// Folders carry Children; session nodes carry Session.
type LibraryNode struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Name      string        `json:"name"`
	CreatedAt string        `json:"created_at"`
	Children  []LibraryNode `json:"children,omitempty"`
	Session   *SavedSession `json:"session,omitempty"`
}
