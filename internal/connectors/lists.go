package connectors

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"
)

// entraGUIDRE matches an Entra ID GUID, used to filter permission principals
// that resolve to users/groups (as opposed to service principals or other
// shapes the beta permissions endpoint can return).
var entraGUIDRE = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// GraphClient is the minimal collaboration-platform API surface the Lists
// Connector needs: listing items, resolving a lookup field's display value
// by ID, and reading an item's permission principals. A real implementation
// calls a Graph-style REST API; it is specified here at the contract level
// only, per the purpose statement's scope boundary.
type GraphClient interface {
	ListItems(ctx context.Context, listID string) ([]ListItem, error)
	ResolveLookup(ctx context.Context, lookupListID, itemID string) (string, error)
	ItemPermissions(ctx context.Context, listID, itemID string) ([]string, []string, error)
	DownloadDriveItem(ctx context.Context, driveItemID string) (io.ReadCloser, string, int64, error)
}

// ListItem is one row from a collaboration-platform list or document
// library, as returned by ListItems.
type ListItem struct {
	ID            string
	DisplayURL    string
	LastModified  time.Time
	DriveItemID   string // non-empty for document-library items
	Filename      string
	LookupListID  string
	LookupValueID string
}

// ListsConnector enumerates a collaboration-platform list or document
// library (§4.7 "Collaboration platform"): for document libraries it
// follows the driveItem link to binary content; lookup fields are resolved
// by ID through a per-engine cache; permissions are read from a beta
// endpoint and filtered to Entra-GUID principals.
type ListsConnector struct {
	client GraphClient
	listID string

	mu          sync.Mutex
	lookupCache map[string]string
}

// NewListsConnector constructs a ListsConnector with its client and target
// list captured at construction.
func NewListsConnector(client GraphClient, listID string) *ListsConnector {
	return &ListsConnector{client: client, listID: listID, lookupCache: make(map[string]string)}
}

func (c *ListsConnector) Enumerate(ctx context.Context) (<-chan ItemRef, <-chan error) {
	items := make(chan ItemRef)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		rows, err := c.client.ListItems(ctx, c.listID)
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			return
		}

		for _, row := range rows {
			row := row
			ref := ItemRef{
				ID:           row.ID,
				DisplayName:  displayName(row),
				ParentPath:   c.listID,
				LastModified: row.LastModified,
			}
			if row.LookupListID != "" {
				if v, err := c.resolveLookup(ctx, row.LookupListID, row.LookupValueID); err == nil {
					ref.DisplayName = v
				}
			}
			if uids, gids, err := c.client.ItemPermissions(ctx, c.listID, row.ID); err == nil {
				ref.UserIDs = filterEntraGUIDs(uids)
				ref.GroupIDs = filterEntraGUIDs(gids)
			}
			if row.DriveItemID != "" {
				driveItemID := row.DriveItemID
				ref.Download = func(ctx context.Context) (io.ReadCloser, string, int64, error) {
					return c.client.DownloadDriveItem(ctx, driveItemID)
				}
			} else {
				ref.Download = func(ctx context.Context) (io.ReadCloser, string, int64, error) {
					return nil, "", 0, fmt.Errorf("connectors: list item %q has no downloadable body", row.ID)
				}
			}
			select {
			case items <- ref:
			case <-ctx.Done():
				return
			}
		}
	}()

	return items, errs
}

func displayName(row ListItem) string {
	if row.Filename != "" {
		return row.Filename
	}
	return row.ID
}

// resolveLookup resolves a lookup field's display value by ID, caching
// results across the engine run with read-then-compute-then-store,
// last-writer-wins semantics (§5 "Shared resources").
func (c *ListsConnector) resolveLookup(ctx context.Context, lookupListID, itemID string) (string, error) {
	key := lookupListID + "/" + itemID
	c.mu.Lock()
	if v, ok := c.lookupCache[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.client.ResolveLookup(ctx, lookupListID, itemID)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.lookupCache[key] = v
	c.mu.Unlock()
	return v, nil
}

func filterEntraGUIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if entraGUIDRE.MatchString(id) {
			out = append(out, id)
		}
	}
	return out
}

var _ Connector = (*ListsConnector)(nil)
