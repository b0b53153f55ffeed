package drive

// Folder is a folder node in the remote store.
type Folder struct {
	ID       string
	Name     string
	ParentID string
	ViewURL  string
}

// File is an uploaded object in the remote store.
type File struct {
	ID       string
	Name     string
	ParentID string
	MimeType string
	ViewURL  string
}

// Object is the raw shape returned by the store API, normalized by the
// adapter. Folders and files share it; MimeType distinguishes them.
type Object struct {
	ID       string
	Name     string
	MimeType string
	ViewURL  string
	ParentID string
}

// FolderMimeType marks folder objects in the remote store.
const FolderMimeType = "application/vnd.google-apps.folder"

// IsFolder reports whether the object is a folder node.
func (o *Object) IsFolder() bool {
	return o.MimeType == FolderMimeType
}

func (o *Object) toFolder() *Folder {
	return &Folder{ID: o.ID, Name: o.Name, ParentID: o.ParentID, ViewURL: o.ViewURL}
}

func (o *Object) toFile() *File {
	return &File{ID: o.ID, Name: o.Name, ParentID: o.ParentID, MimeType: o.MimeType, ViewURL: o.ViewURL}
}
