package connectors

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGraphClient struct {
	items       []ListItem
	lookupCalls int
	permissions map[string][2][]string
}

func (f *fakeGraphClient) ListItems(ctx context.Context, listID string) ([]ListItem, error) {
	return f.items, nil
}

func (f *fakeGraphClient) ResolveLookup(ctx context.Context, lookupListID, itemID string) (string, error) {
	f.lookupCalls++
	return "resolved-" + itemID, nil
}

func (f *fakeGraphClient) ItemPermissions(ctx context.Context, listID, itemID string) ([]string, []string, error) {
	p := f.permissions[itemID]
	return p[0], p[1], nil
}

func (f *fakeGraphClient) DownloadDriveItem(ctx context.Context, driveItemID string) (io.ReadCloser, string, int64, error) {
	return io.NopCloser(strings.NewReader("binary content")), "application/pdf", 14, nil
}

func TestListsConnectorResolvesLookupAndCaches(t *testing.T) {
	client := &fakeGraphClient{
		items: []ListItem{
			{ID: "1", LastModified: time.Now(), LookupListID: "L", LookupValueID: "v1"},
			{ID: "2", LastModified: time.Now(), LookupListID: "L", LookupValueID: "v1"},
		},
	}
	conn := NewListsConnector(client, "list-1")
	items, errs := conn.Enumerate(context.Background())

	var got []ItemRef
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, got, 2)
	require.Equal(t, "resolved-v1", got[0].DisplayName)
	require.Equal(t, "resolved-v1", got[1].DisplayName)
	require.Equal(t, 1, client.lookupCalls)
}

func TestListsConnectorFiltersPermissionsToEntraGUIDs(t *testing.T) {
	client := &fakeGraphClient{
		items: []ListItem{{ID: "42"}},
		permissions: map[string][2][]string{
			"42": {
				{"11111111-1111-1111-1111-111111111111", "not-a-guid"},
				{"22222222-2222-2222-2222-222222222222"},
			},
		},
	}
	conn := NewListsConnector(client, "list-1")
	items, errs := conn.Enumerate(context.Background())
	var got []ItemRef
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, got, 1)
	require.Equal(t, []string{"11111111-1111-1111-1111-111111111111"}, got[0].UserIDs)
	require.Equal(t, []string{"22222222-2222-2222-2222-222222222222"}, got[0].GroupIDs)
}

func TestListsConnectorDocumentLibraryDownloadsDriveItem(t *testing.T) {
	client := &fakeGraphClient{items: []ListItem{{ID: "3", DriveItemID: "drive-3", Filename: "report.pdf"}}}
	conn := NewListsConnector(client, "lib-1")
	items, errs := conn.Enumerate(context.Background())
	var got []ItemRef
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, drain(errs))
	require.Len(t, got, 1)
	rc, ctype, _, err := got[0].Download(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	require.Equal(t, "binary content", string(body))
	require.Equal(t, "application/pdf", ctype)
}
