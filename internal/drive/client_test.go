package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory store API with call counters.
type fakeAPI struct {
	nextID  int
	objects map[string][]Object // parent id -> children, creation order
	public  map[string]bool

	listCalls         int
	createFolderCalls int
	createFileCalls   int

	failCreateFile error
	failList       error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		objects: make(map[string][]Object),
		public:  make(map[string]bool),
	}
}

func (f *fakeAPI) List(_ context.Context, parentID, nameFilter, mimeFilter string) ([]Object, error) {
	f.listCalls++

	if f.failList != nil {
		return nil, f.failList
	}

	var out []Object

	for _, obj := range f.objects[parentID] {
		if nameFilter != "" && obj.Name != nameFilter {
			continue
		}

		if mimeFilter != "" && obj.MimeType != mimeFilter {
			continue
		}

		out = append(out, obj)
	}

	return out, nil
}

func (f *fakeAPI) CreateFolder(_ context.Context, parentID, name string) (*Object, error) {
	f.createFolderCalls++
	f.nextID++

	obj := Object{
		ID:       fmt.Sprintf("folder-%d", f.nextID),
		Name:     name,
		MimeType: FolderMimeType,
		ViewURL:  fmt.Sprintf("https://store.example/folders/%d", f.nextID),
		ParentID: parentID,
	}
	f.objects[parentID] = append(f.objects[parentID], obj)

	return &obj, nil
}

func (f *fakeAPI) CreateFile(
	_ context.Context, parentID, name, mimeType string, content io.Reader,
) (*Object, error) {
	f.createFileCalls++

	if f.failCreateFile != nil {
		return nil, f.failCreateFile
	}

	if _, err := io.ReadAll(content); err != nil {
		return nil, err
	}

	f.nextID++

	obj := Object{
		ID:       fmt.Sprintf("file-%d", f.nextID),
		Name:     name,
		MimeType: mimeType,
		ViewURL:  fmt.Sprintf("https://store.example/files/%d", f.nextID),
		ParentID: parentID,
	}
	f.objects[parentID] = append(f.objects[parentID], obj)

	return &obj, nil
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	for parent, children := range f.objects {
		for i, obj := range children {
			if obj.ID == id {
				f.objects[parent] = append(children[:i:i], children[i+1:]...)
				return nil
			}
		}
	}

	return errors.New("no such object")
}

func (f *fakeAPI) AllowAnyoneRead(_ context.Context, id string) error {
	f.public[id] = true
	return nil
}

func TestEnsureFolderPath_CreatesMissingLevels(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	leaf, err := client.EnsureFolderPath(context.Background(), []string{"A", "B", "C"}, false)
	require.NoError(t, err)

	assert.Equal(t, "C", leaf.Name)
	assert.Equal(t, 3, api.createFolderCalls)
	assert.True(t, api.public[leaf.ID], "leaf folder must be shared")
}

func TestEnsureFolderPath_Idempotent(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	first, err := client.EnsureFolderPath(context.Background(), []string{"A", "B", "C"}, false)
	require.NoError(t, err)

	second, err := client.EnsureFolderPath(context.Background(), []string{"A", "B", "C"}, false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// Exactly one create per unique segment across both invocations.
	assert.Equal(t, 3, api.createFolderCalls)
}

func TestEnsureFolderPath_IdempotentAcrossClients(t *testing.T) {
	api := newFakeAPI()

	first, err := NewClient(api, "", nil).EnsureFolderPath(context.Background(), []string{"A", "B"}, false)
	require.NoError(t, err)

	// A fresh client has a cold cache but must still resolve, not recreate.
	second, err := NewClient(api, "", nil).EnsureFolderPath(context.Background(), []string{"A", "B"}, false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, api.createFolderCalls)
}

func TestEnsureFolderPath_LeafAlwaysPublic(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	leaf, err := client.EnsureFolderPath(context.Background(), []string{"Evidence", "2026"}, false)
	require.NoError(t, err)

	assert.True(t, api.public[leaf.ID])

	// Intermediate level stays private when makePublic is false.
	parent := api.objects[RootParentID][0]
	assert.False(t, api.public[parent.ID])
}

func TestEnsureFolderPath_MakePublicSharesIntermediates(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	_, err := client.EnsureFolderPath(context.Background(), []string{"Evidence", "2026"}, true)
	require.NoError(t, err)

	parent := api.objects[RootParentID][0]
	assert.True(t, api.public[parent.ID])
}

func TestEnsureFolderPath_Empty(t *testing.T) {
	client := NewClient(newFakeAPI(), "", nil)

	_, err := client.EnsureFolderPath(context.Background(), nil, false)
	assert.Error(t, err)
}

func TestEnsureFolderPath_DuplicateSiblingsFirstMatchWins(t *testing.T) {
	api := newFakeAPI()

	// Simulate a cross-process race: two folders with the same name.
	older, err := api.CreateFolder(context.Background(), RootParentID, "A")
	require.NoError(t, err)
	_, err = api.CreateFolder(context.Background(), RootParentID, "A")
	require.NoError(t, err)

	client := NewClient(api, "", nil)

	leaf, resolveErr := client.EnsureFolderPath(context.Background(), []string{"A"}, false)
	require.NoError(t, resolveErr)
	assert.Equal(t, older.ID, leaf.ID)
}

func TestCreateUniqueChildFolder_Suffixing(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	first, err := client.CreateUniqueChildFolder(context.Background(), RootParentID, "Report")
	require.NoError(t, err)
	assert.Equal(t, "Report", first.Name)

	second, err := client.CreateUniqueChildFolder(context.Background(), RootParentID, "Report")
	require.NoError(t, err)
	assert.Equal(t, "Report_2", second.Name)

	third, err := client.CreateUniqueChildFolder(context.Background(), RootParentID, "Report")
	require.NoError(t, err)
	assert.Equal(t, "Report_3", third.Name)
}

func TestUniqueChildFileName(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	ctx := context.Background()

	name, err := client.UniqueChildFileName(ctx, RootParentID, "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)

	_, err = api.CreateFile(ctx, RootParentID, "photo.jpg", "image/jpeg", emptyReader())
	require.NoError(t, err)

	name, err = client.UniqueChildFileName(ctx, RootParentID, "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo_2.jpg", name)
}

func TestUploadFile(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	path := writeTempFile(t, "evidence bytes")

	file, err := client.UploadFile(context.Background(), "folder-1", "photo.jpg", "image/jpeg", path)
	require.NoError(t, err)

	assert.Equal(t, "photo.jpg", file.Name)
	assert.Equal(t, "image/jpeg", file.MimeType)
	assert.NotEmpty(t, file.ViewURL)
}

func TestUploadFile_MissingLocalFile(t *testing.T) {
	client := NewClient(newFakeAPI(), "", nil)

	_, err := client.UploadFile(
		context.Background(), "folder-1", "photo.jpg", "image/jpeg",
		filepath.Join(t.TempDir(), "absent.jpg"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUploadFile_RemoteFailure(t *testing.T) {
	api := newFakeAPI()
	api.failCreateFile = errors.New("quota exceeded")
	client := NewClient(api, "", nil)

	path := writeTempFile(t, "bytes")

	_, err := client.UploadFile(context.Background(), "folder-1", "photo.jpg", "image/jpeg", path)
	require.Error(t, err)

	var remoteError *RemoteError
	require.ErrorAs(t, err, &remoteError)
	assert.Contains(t, remoteError.Error(), "quota exceeded")
}

func TestUploadOrReplaceFile_NotDuplicative(t *testing.T) {
	api := newFakeAPI()
	client := NewClient(api, "", nil)

	ctx := context.Background()
	path := writeTempFile(t, "report v1")

	first, err := client.UploadOrReplaceFile(ctx, "reports", "July 2026.xlsx", "application/vnd.ms-excel", path)
	require.NoError(t, err)

	second, err := client.UploadOrReplaceFile(ctx, "reports", "July 2026.xlsx", "application/vnd.ms-excel", path)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	remaining, err := api.List(ctx, "reports", "July 2026.xlsx", "")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, second.ID, remaining[0].ID)
}

func TestUniqueName(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		taken []string
		want  string
	}{
		{"free", "Report", nil, "Report"},
		{"one collision", "Report", []string{"Report"}, "Report_2"},
		{"two collisions", "Report", []string{"Report", "Report_2"}, "Report_3"},
		{"gap reused", "Report", []string{"Report", "Report_3"}, "Report_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taken := make(map[string]bool, len(tt.taken))
			for _, n := range tt.taken {
				taken[n] = true
			}

			assert.Equal(t, tt.want, uniqueName(tt.base, taken))
		})
	}
}

func TestUniqueFileName_KeepsExtension(t *testing.T) {
	taken := map[string]bool{"scan.pdf": true, "scan_2.pdf": true}
	assert.Equal(t, "scan_3.pdf", uniqueFileName("scan.pdf", taken))
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "staged.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func emptyReader() io.Reader {
	return io.MultiReader()
}
