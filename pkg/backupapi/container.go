package backupapi

import (
	"context"
	"net/http"
)

// ContainerProperties ...
type ContainerProperties struct {
	FriendlyName          string `json:"friendly_name"`
	ResourceGroup         string `json:"resource_group"`
	RegistrationStatus    string `json:"registration_status"`
	HealthStatus          string `json:"health_status"`
	ContainerType         string `json:"container_type"`
	VirtualMachineID      string `json:"virtual_machine_id"`
	VirtualMachineVersion string `json:"virtual_machine_version"`
}

// Container is a protection container, the registration scope of protected items.
type Container struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Properties *ContainerProperties `json:"properties"`
}

// ContainerList ...
type ContainerList struct {
	Value []Container `json:"value"`
}

// ContainerQuery filters containers on the server. Empty fields are not sent.
type ContainerQuery struct {
	FriendlyName       string
	ProviderType       string
	RegistrationStatus string
}

// ListContainers lists the protection containers of the vault.
func (c *Client) ListContainers(ctx context.Context, q ContainerQuery) (*ContainerList, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, c.containersPath(), nil)
	if err != nil {
		return nil, err
	}
	query := req.URL.Query()
	if q.FriendlyName != "" {
		query.Set("friendlyName", q.FriendlyName)
	}
	if q.ProviderType != "" {
		query.Set("providerType", q.ProviderType)
	}
	if q.RegistrationStatus != "" {
		query.Set("registrationStatus", q.RegistrationStatus)
	}
	req.URL.RawQuery = query.Encode()

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var list ContainerList
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
