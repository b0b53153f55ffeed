package drive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// RootParentID is the parent id of the drive's own root folder.
const RootParentID = "root"

// Client is the remote store façade. It is constructed per unit of work and
// owns its own folder cache and credential handle — no ambient state is
// shared between units.
//
// Within one unit, calls are expected to be sequential: the folder cache and
// the collision-suffix algorithm are not designed for concurrent writers to
// the same parent. The mutex makes cache access safe, not the naming
// protocol.
type Client struct {
	api        API
	rootParent string
	logger     *slog.Logger

	mu sync.Mutex
	// children caches the known child folders per parent id. Invalidated
	// for a parent the instant a new child is created under it, which also
	// makes the just-created folder visible to subsequent lookups in this
	// unit.
	children map[string][]Folder
}

// NewClient builds a client on top of the given store API. rootParent is the
// parent under which top-level folders live: a shared drive id, or
// RootParentID for the user's own drive.
func NewClient(api API, rootParent string, logger *slog.Logger) *Client {
	if rootParent == "" {
		rootParent = RootParentID
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:        api,
		rootParent: rootParent,
		logger:     logger,
		children:   make(map[string][]Folder),
	}
}

// childFolders returns the child folders of parentID, served from the cache
// when available.
func (c *Client) childFolders(ctx context.Context, parentID string) ([]Folder, error) {
	c.mu.Lock()
	cached, ok := c.children[parentID]
	c.mu.Unlock()

	if ok {
		return cached, nil
	}

	objects, err := c.api.List(ctx, parentID, "", FolderMimeType)
	if err != nil {
		return nil, remoteErr("list folders", err)
	}

	folders := make([]Folder, 0, len(objects))
	for i := range objects {
		folders = append(folders, *objects[i].toFolder())
	}

	c.mu.Lock()
	c.children[parentID] = folders
	c.mu.Unlock()

	return folders, nil
}

// invalidate drops the cache entry for parentID, forcing the next lookup to
// refetch from the remote store.
func (c *Client) invalidate(parentID string) {
	c.mu.Lock()
	delete(c.children, parentID)
	c.mu.Unlock()
}

// EnsureFolderPath resolves or creates each level of the given path in
// order, starting under the client's root parent. The leaf folder is always
// made publicly readable — leaf folders of a publication path are shared by
// contract, so the makePublic flag only controls whether intermediate levels
// are shared as well.
//
// Duplicate sibling names can exist after a cross-process race; the first
// match in creation order wins deterministically.
func (c *Client) EnsureFolderPath(ctx context.Context, segments []string, makePublic bool) (*Folder, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("drive: empty folder path")
	}

	parentID := c.rootParent

	var current *Folder

	for i, segment := range segments {
		folder, err := c.resolveOrCreate(ctx, parentID, segment)
		if err != nil {
			return nil, err
		}

		leaf := i == len(segments)-1
		if leaf || makePublic {
			if permErr := c.api.AllowAnyoneRead(ctx, folder.ID); permErr != nil {
				return nil, remoteErr("share folder", permErr)
			}
		}

		current = folder
		parentID = folder.ID
	}

	c.logger.Info("folder path resolved",
		slog.Any("segments", segments),
		slog.String("folder_id", current.ID),
	)

	return current, nil
}

// resolveOrCreate returns the existing child folder named name under
// parentID, creating it when absent.
func (c *Client) resolveOrCreate(ctx context.Context, parentID, name string) (*Folder, error) {
	folders, err := c.childFolders(ctx, parentID)
	if err != nil {
		return nil, err
	}

	for i := range folders {
		if folders[i].Name == name {
			return &folders[i], nil
		}
	}

	obj, err := c.api.CreateFolder(ctx, parentID, name)
	if err != nil {
		return nil, remoteErr("create folder", err)
	}

	c.invalidate(parentID)

	return obj.toFolder(), nil
}

// CreateUniqueChildFolder creates a folder under parentID whose name does not
// collide with any existing sibling, appending _2, _3, ... to baseName until
// a free name is found.
func (c *Client) CreateUniqueChildFolder(ctx context.Context, parentID, baseName string) (*Folder, error) {
	folders, err := c.childFolders(ctx, parentID)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(folders))
	for i := range folders {
		taken[folders[i].Name] = true
	}

	name := uniqueName(baseName, taken)

	obj, err := c.api.CreateFolder(ctx, parentID, name)
	if err != nil {
		return nil, remoteErr("create folder", err)
	}

	c.invalidate(parentID)

	c.logger.Info("created unique child folder",
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	return obj.toFolder(), nil
}

// UniqueChildFileName returns a file name under parentID that does not
// collide with any existing child, file or folder. The suffix is inserted
// before the extension: "Report.pdf" becomes "Report_2.pdf".
func (c *Client) UniqueChildFileName(ctx context.Context, parentID, name string) (string, error) {
	objects, err := c.api.List(ctx, parentID, "", "")
	if err != nil {
		return "", remoteErr("list children", err)
	}

	taken := make(map[string]bool, len(objects))
	for i := range objects {
		taken[objects[i].Name] = true
	}

	return uniqueFileName(name, taken), nil
}

// SetPubliclyReadable grants anyone-with-link read access to an object.
// Repeated calls are harmless.
func (c *Client) SetPubliclyReadable(ctx context.Context, objectID string) error {
	if err := c.api.AllowAnyoneRead(ctx, objectID); err != nil {
		return remoteErr("share object", err)
	}

	return nil
}
