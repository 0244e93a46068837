package backupapi

import (
	"fmt"
	"net/url"
)

func (c *Client) vaultPath() string {
	return fmt.Sprintf("/vaults/%s", url.PathEscape(c.vault))
}

func (c *Client) protectableItemsPath() string {
	return c.vaultPath() + "/protectableItems"
}

func (c *Client) refreshContainersPath() string {
	return c.vaultPath() + "/refreshContainers"
}

func (c *Client) containersPath() string {
	return c.vaultPath() + "/protectionContainers"
}

func (c *Client) protectedItemsPath() string {
	return c.vaultPath() + "/protectedItems"
}

func (c *Client) protectedItemPath(containerName, itemName string) string {
	return fmt.Sprintf("%s/%s/protectedItems/%s", c.containersPath(), url.PathEscape(containerName), url.PathEscape(itemName))
}

func (c *Client) backupPath(containerName, itemName string) string {
	return c.protectedItemPath(containerName, itemName) + "/backup"
}

func (c *Client) recoveryPointsPath(containerName, itemName string) string {
	return c.protectedItemPath(containerName, itemName) + "/recoveryPoints"
}

func (c *Client) recoveryPointPath(containerName, itemName, recoveryPointID string) string {
	return fmt.Sprintf("%s/%s", c.recoveryPointsPath(containerName, itemName), url.PathEscape(recoveryPointID))
}

func (c *Client) restorePath(containerName, itemName, recoveryPointID string) string {
	return c.recoveryPointPath(containerName, itemName, recoveryPointID) + "/restore"
}

func (c *Client) protectionPolicyPath(name string) string {
	return fmt.Sprintf("%s/protectionPolicies/%s", c.vaultPath(), url.PathEscape(name))
}
