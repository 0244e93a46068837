package backupapi

import (
	"context"
	"net/http"
)

// ProtectableItemProperties describes a virtual machine the service has
// discovered but that is not protected yet.
type ProtectableItemProperties struct {
	FriendlyName          string `json:"friendly_name"`
	ResourceGroup         string `json:"resource_group"`
	VirtualMachineID      string `json:"virtual_machine_id"`
	VirtualMachineVersion string `json:"virtual_machine_version"`
	ProtectionState       string `json:"protection_state"`
	WorkloadType          string `json:"workload_type"`
}

// ProtectableItem ...
type ProtectableItem struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name"`
	Properties *ProtectableItemProperties `json:"properties"`
}

// ProtectableItemList is a list of protectable items. The service does not
// paginate it.
type ProtectableItemList struct {
	Value []ProtectableItem `json:"value"`
}

// ProtectableItemQuery filters protectable items on the server.
type ProtectableItemQuery struct {
	ProviderType string
	FriendlyName string
}

// ListProtectableItems lists the protectable items of the vault.
func (c *Client) ListProtectableItems(ctx context.Context, q ProtectableItemQuery) (*ProtectableItemList, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, c.protectableItemsPath(), nil)
	if err != nil {
		return nil, err
	}
	query := req.URL.Query()
	if q.ProviderType != "" {
		query.Set("providerType", q.ProviderType)
	}
	if q.FriendlyName != "" {
		query.Set("friendlyName", q.FriendlyName)
	}
	req.URL.RawQuery = query.Encode()

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var list ProtectableItemList
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
