package backupapi

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
)

const (
	locationHeader       = "Location"
	asyncOperationHeader = "Azure-AsyncOperation"
)

// JobResponse is the handle of an asynchronous backend operation. The caller
// may poll Location; this package never waits for the job itself.
type JobResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Location   string `json:"location,omitempty"`
	StatusCode int    `json:"-"`
}

// jobResponse builds a JobResponse from a successful response and closes it.
func jobResponse(resp *http.Response) (*JobResponse, error) {
	defer resp.Body.Close()
	job := &JobResponse{StatusCode: resp.StatusCode}
	buf, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(buf) > 0 {
		if err := json.Unmarshal(buf, job); err != nil {
			return nil, err
		}
	}
	if loc := resp.Header.Get(asyncOperationHeader); loc != "" {
		job.Location = loc
	}
	if loc := resp.Header.Get(locationHeader); loc != "" {
		job.Location = loc
	}
	return job, nil
}

func (c *Client) submitJob(ctx context.Context, method, relPath string, body interface{}) (*JobResponse, error) {
	req, err := c.NewRequest(ctx, method, relPath, body)
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
	return jobResponse(resp)
}

// RefreshContainers asks the service to rediscover protectable virtual
// machines. The returned job's Location is polled with GetOperationStatus.
func (c *Client) RefreshContainers(ctx context.Context) (*JobResponse, error) {
	return c.submitJob(ctx, http.MethodPost, c.refreshContainersPath(), nil)
}

// GetOperationStatus fetches an operation location and returns the HTTP
// status code as is. Only transport failures are returned as errors.
func (c *Client) GetOperationStatus(ctx context.Context, location string) (int, error) {
	var (
		req *http.Request
		err error
	)
	if u, perr := url.Parse(location); perr == nil && u.IsAbs() {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		req, err = c.NewRequest(ctx, http.MethodGet, location, nil)
	}
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
