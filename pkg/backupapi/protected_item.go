package backupapi

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const skipTokenParam = "$skiptoken"

// ProtectedItemProperties ...
type ProtectedItemProperties struct {
	ProtectedItemType string     `json:"protected_item_type"`
	FriendlyName      string     `json:"friendly_name,omitempty"`
	ContainerName     string     `json:"container_name,omitempty"`
	VirtualMachineID  string     `json:"virtual_machine_id,omitempty"`
	PolicyName        string     `json:"policy_name"`
	ProtectionState   string     `json:"protection_state,omitempty"`
	ProtectionStatus  string     `json:"protection_status,omitempty"`
	WorkloadType      string     `json:"workload_type,omitempty"`
	LastBackupTime    *time.Time `json:"last_backup_time,omitempty"`
}

// ProtectedItem is a virtual machine under protection.
type ProtectedItem struct {
	ID         string                   `json:"id,omitempty"`
	Name       string                   `json:"name,omitempty"`
	Properties *ProtectedItemProperties `json:"properties"`
}

// ProtectedItemRequest creates or updates a protected item.
type ProtectedItemRequest struct {
	Item ProtectedItem `json:"item"`
}

// ProtectedItemPage is one page of protected items. NextLink is empty on the
// last page.
type ProtectedItemPage struct {
	Value    []ProtectedItem `json:"value"`
	NextLink string          `json:"next_link,omitempty"`
}

// ProtectedItemQuery filters protected items on the server.
type ProtectedItemQuery struct {
	DatasourceType string
	ProviderType   string
}

// SkipToken extracts the continuation token from a next link. It returns ""
// when there are no more pages.
func SkipToken(nextLink string) string {
	if nextLink == "" {
		return ""
	}
	u, err := url.Parse(nextLink)
	if err != nil {
		return ""
	}
	return u.Query().Get(skipTokenParam)
}

// CreateOrUpdateProtectedItem puts a protected item under the given container.
func (c *Client) CreateOrUpdateProtectedItem(ctx context.Context, containerName, itemName string, r *ProtectedItemRequest) (*JobResponse, error) {
	return c.submitJob(ctx, http.MethodPut, c.protectedItemPath(containerName, itemName), r)
}

// DeleteProtectedItem stops protection and deletes the backup data of an item.
func (c *Client) DeleteProtectedItem(ctx context.Context, containerName, itemName string) (*JobResponse, error) {
	return c.submitJob(ctx, http.MethodDelete, c.protectedItemPath(containerName, itemName), nil)
}

// BackupRequest triggers an on demand backup.
type BackupRequest struct {
	ExpiryTime *time.Time `json:"expiry_time,omitempty"`
}

// TriggerBackup starts an on demand backup of an item. A zero expiry lets the
// service apply the policy retention.
func (c *Client) TriggerBackup(ctx context.Context, containerName, itemName string, expiry time.Time) (*JobResponse, error) {
	br := &BackupRequest{}
	if !expiry.IsZero() {
		e := expiry.UTC()
		br.ExpiryTime = &e
	}
	return c.submitJob(ctx, http.MethodPost, c.backupPath(containerName, itemName), br)
}

// ListProtectedItems returns one page of protected items. An empty skipToken
// requests the first page.
func (c *Client) ListProtectedItems(ctx context.Context, q ProtectedItemQuery, skipToken string) (*ProtectedItemPage, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, c.protectedItemsPath(), nil)
	if err != nil {
		return nil, err
	}
	query := req.URL.Query()
	if q.DatasourceType != "" {
		query.Set("datasourceType", q.DatasourceType)
	}
	if q.ProviderType != "" {
		query.Set("providerType", q.ProviderType)
	}
	if skipToken != "" {
		query.Set(skipTokenParam, skipToken)
	}
	req.URL.RawQuery = query.Encode()

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var page ProtectedItemPage
	if err := decodeJSON(resp, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
