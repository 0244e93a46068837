package backupapi

import (
	"context"
	"net/http"
	"time"
)

// RecoveryPointProperties ...
type RecoveryPointProperties struct {
	RecoveryPointType   string    `json:"recovery_point_type"`
	RecoveryPointTime   time.Time `json:"recovery_point_time"`
	SourceVMStorageType string    `json:"source_vm_storage_type,omitempty"`
	SizeInBytes         uint64    `json:"size_in_bytes,omitempty"`
}

// RecoveryPoint is a restorable snapshot of a protected item.
type RecoveryPoint struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Properties *RecoveryPointProperties `json:"properties"`
}

// RecoveryPointList ...
type RecoveryPointList struct {
	Value []RecoveryPoint `json:"value"`
}

// RecoveryPointQuery bounds a recovery point listing. Both dates are already
// in the service date format.
type RecoveryPointQuery struct {
	StartDate string
	EndDate   string
}

// RestoreRequest restores the disks of a recovery point to a storage account.
type RestoreRequest struct {
	RecoveryPointID  string `json:"recovery_point_id"`
	StorageAccountID string `json:"storage_account_id"`
}

// ListRecoveryPoints lists the recovery points of an item inside a date range.
func (c *Client) ListRecoveryPoints(ctx context.Context, containerName, itemName string, q RecoveryPointQuery) (*RecoveryPointList, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, c.recoveryPointsPath(containerName, itemName), nil)
	if err != nil {
		return nil, err
	}
	query := req.URL.Query()
	query.Set("startDate", q.StartDate)
	query.Set("endDate", q.EndDate)
	req.URL.RawQuery = query.Encode()

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var list RecoveryPointList
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetRecoveryPoint fetches one recovery point of an item.
func (c *Client) GetRecoveryPoint(ctx context.Context, containerName, itemName, recoveryPointID string) (*RecoveryPoint, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, c.recoveryPointPath(containerName, itemName, recoveryPointID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var rp RecoveryPoint
	if err := decodeJSON(resp, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

// RestoreDisk restores the disks of a recovery point into a storage account.
func (c *Client) RestoreDisk(ctx context.Context, containerName, itemName, recoveryPointID, storageAccountID string) (*JobResponse, error) {
	rr := &RestoreRequest{RecoveryPointID: recoveryPointID, StorageAccountID: storageAccountID}
	return c.submitJob(ctx, http.MethodPost, c.restorePath(containerName, itemName, recoveryPointID), rr)
}
