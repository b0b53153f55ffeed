package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// listPageSize is the page size for children listings. 100 keeps responses
// small; pagination handles larger folders.
const listPageSize = 100

// objectFields is the field mask requested on every call that returns
// objects. webViewLink is what the domain layer persists as the public URL.
const objectFields = "id, name, mimeType, webViewLink, parents"

// GoogleAPI implements API over the Google Drive v3 service. When
// sharedDriveID is non-empty, all calls are scoped to that shared drive.
type GoogleAPI struct {
	svc           *gdrive.Service
	sharedDriveID string
	logger        *slog.Logger
}

// NewGoogleAPI constructs the Drive v3 adapter with the given token source.
func NewGoogleAPI(
	ctx context.Context, ts oauth2.TokenSource, sharedDriveID string, logger *slog.Logger,
) (*GoogleAPI, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := gdrive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("drive: creating service: %w", err)
	}

	return &GoogleAPI{svc: svc, sharedDriveID: sharedDriveID, logger: logger}, nil
}

// escapeQueryValue escapes a value for interpolation into a Drive query
// string. Single quotes and backslashes are the only characters with
// meaning inside a quoted query literal.
func escapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)

	return strings.ReplaceAll(v, `'`, `\'`)
}

func (g *GoogleAPI) List(ctx context.Context, parentID, nameFilter, mimeFilter string) ([]Object, error) {
	terms := []string{
		fmt.Sprintf("'%s' in parents", escapeQueryValue(parentID)),
		"trashed = false",
	}

	if nameFilter != "" {
		terms = append(terms, fmt.Sprintf("name = '%s'", escapeQueryValue(nameFilter)))
	}

	if mimeFilter != "" {
		terms = append(terms, fmt.Sprintf("mimeType = '%s'", escapeQueryValue(mimeFilter)))
	}

	query := strings.Join(terms, " and ")

	g.logger.Debug("listing children",
		slog.String("parent_id", parentID),
		slog.String("query", query),
	)

	var (
		objects   []Object
		pageToken string
	)

	for {
		call := g.svc.Files.List().
			Context(ctx).
			Q(query).
			OrderBy("createdTime").
			PageSize(listPageSize).
			Fields(googleapi.Field("nextPageToken, files(" + objectFields + ")"))

		if g.sharedDriveID != "" {
			call = call.
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Corpora("drive").
				DriveId(g.sharedDriveID)
		}

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", parentID, err)
		}

		for _, f := range list.Files {
			objects = append(objects, toObject(f, parentID))
		}

		if list.NextPageToken == "" {
			break
		}

		pageToken = list.NextPageToken
	}

	g.logger.Debug("listed children",
		slog.String("parent_id", parentID),
		slog.Int("count", len(objects)),
	)

	return objects, nil
}

func (g *GoogleAPI) CreateFolder(ctx context.Context, parentID, name string) (*Object, error) {
	g.logger.Info("creating folder",
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	meta := &gdrive.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{parentID},
	}

	created, err := g.svc.Files.Create(meta).
		Context(ctx).
		SupportsAllDrives(true).
		Fields(googleapi.Field(objectFields)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("creating folder %q under %s: %w", name, parentID, err)
	}

	obj := toObject(created, parentID)

	return &obj, nil
}

func (g *GoogleAPI) CreateFile(
	ctx context.Context, parentID, name, mimeType string, content io.Reader,
) (*Object, error) {
	g.logger.Info("uploading file",
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.String("mime_type", mimeType),
	)

	meta := &gdrive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}

	created, err := g.svc.Files.Create(meta).
		Context(ctx).
		Media(content, googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).
		Fields(googleapi.Field(objectFields)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("uploading %q to %s: %w", name, parentID, err)
	}

	obj := toObject(created, parentID)

	return &obj, nil
}

func (g *GoogleAPI) Delete(ctx context.Context, id string) error {
	g.logger.Info("deleting object",
		slog.String("id", id),
	)

	if err := g.svc.Files.Delete(id).Context(ctx).SupportsAllDrives(true).Do(); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}

	return nil
}

func (g *GoogleAPI) AllowAnyoneRead(ctx context.Context, id string) error {
	g.logger.Info("granting public read",
		slog.String("id", id),
	)

	perm := &gdrive.Permission{Type: "anyone", Role: "reader"}

	_, err := g.svc.Permissions.Create(id, perm).
		Context(ctx).
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return fmt.Errorf("granting public read on %s: %w", id, err)
	}

	return nil
}

// toObject normalizes a Drive API file resource. The API omits parents on
// some responses; the request-time parent is authoritative for our use.
func toObject(f *gdrive.File, parentID string) Object {
	obj := Object{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		ViewURL:  f.WebViewLink,
		ParentID: parentID,
	}

	if len(f.Parents) > 0 {
		obj.ParentID = f.Parents[0]
	}

	return obj
}
