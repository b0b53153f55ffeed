package drive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// UploadFile uploads the file at localPath as a new object named name under
// parentID. The caller supplies an already-resolved, already-unique name —
// no collision checking happens here.
func (c *Client) UploadFile(
	ctx context.Context, parentID, name, mimeType, localPath string,
) (*File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("drive: opening %s: %w", localPath, err)
	}
	defer f.Close()

	obj, err := c.api.CreateFile(ctx, parentID, name, mimeType, f)
	if err != nil {
		return nil, remoteErr("upload file", err)
	}

	c.logger.Info("file uploaded",
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.String("id", obj.ID),
	)

	return obj.toFile(), nil
}

// UploadOrReplaceFile uploads localPath under parentID as name, deleting any
// existing non-folder children with that exact name first. This is how a
// recurring report is regenerated instead of duplicated.
//
// Not atomic: a crash between delete and upload leaves the slot empty until
// the next successful run regenerates it.
func (c *Client) UploadOrReplaceFile(
	ctx context.Context, parentID, name, mimeType, localPath string,
) (*File, error) {
	existing, err := c.api.List(ctx, parentID, name, "")
	if err != nil {
		return nil, remoteErr("list existing file", err)
	}

	for i := range existing {
		if existing[i].IsFolder() {
			continue
		}

		if delErr := c.api.Delete(ctx, existing[i].ID); delErr != nil {
			return nil, remoteErr("delete existing file", delErr)
		}

		c.logger.Info("replaced existing file",
			slog.String("parent_id", parentID),
			slog.String("name", name),
			slog.String("old_id", existing[i].ID),
		)
	}

	return c.UploadFile(ctx, parentID, name, mimeType, localPath)
}
