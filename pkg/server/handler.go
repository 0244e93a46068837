package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/discovery"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/protection"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

type errorBody struct {
	Error string `json:"error"`
}

// EnableProtectionBody is the body of POST /protection. Set ContainerName
// and ItemName to change the policy of a protected item, or VMName with
// ResourceGroup or CloudService to protect a new machine.
type EnableProtectionBody struct {
	ContainerName string `json:"container_name"`
	ItemName      string `json:"item_name"`
	VMName        string `json:"vm_name"`
	ResourceGroup string `json:"resource_group"`
	CloudService  string `json:"cloud_service"`
	PolicyName    string `json:"policy_name"`
}

// BackupBody is the body of POST .../backup.
type BackupBody struct {
	ExpiryTime time.Time `json:"expiry_time"`
}

// RestoreBody is the body of POST .../restore.
type RestoreBody struct {
	StorageAccountID string `json:"storage_account_id"`
}

// DefaultPolicyBody is the answer of GET /policies/default.
type DefaultPolicyBody struct {
	Schedule  *policy.SimpleSchedulePolicy    `json:"schedule"`
	Retention *policy.LongTermRetentionPolicy `json:"retention"`
}

// ListContainers serves GET /containers?name=&status=&resource_group=.
func (s *Server) ListContainers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := workload.ParseRegistrationStatus(q.Get("status"))
	if err != nil {
		s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
		return
	}
	containers, err := s.protector.ListContainers(r.Context(), protection.ContainerFilter{
		Name:          q.Get("name"),
		Status:        status,
		ResourceGroup: q.Get("resource_group"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, containers)
}

// ListItems serves GET /containers/{container}/items?name=&status=&state=.
func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := workload.ParseProtectionStatus(q.Get("status"))
	if err != nil {
		s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
		return
	}
	state, err := workload.ParseProtectionState(q.Get("state"))
	if err != nil {
		s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
		return
	}
	items, err := s.protector.ListProtectedItems(r.Context(), protection.ItemFilter{
		Container:        &protection.Container{Name: chi.URLParam(r, "container")},
		Name:             q.Get("name"),
		ProtectionStatus: status,
		ProtectionState:  state,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

// EnableProtection serves POST /protection.
func (s *Server) EnableProtection(w http.ResponseWriter, r *http.Request) {
	var body EnableProtectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
		return
	}
	release, err := s.hold()
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer release()

	job, err := s.enableProtection(r, &body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) enableProtection(r *http.Request, body *EnableProtectionBody) (*backupapi.JobResponse, error) {
	ctx := r.Context()
	pol, err := s.policyFor(ctx, body.PolicyName)
	if err != nil {
		return nil, err
	}
	req := protection.EnableProtectionRequest{
		VMName:        body.VMName,
		ResourceGroup: body.ResourceGroup,
		CloudService:  body.CloudService,
		WorkloadType:  workload.AzureVM,
		Policy:        pol,
	}
	if body.ItemName != "" {
		item, err := s.protector.FindProtectedItem(ctx, body.ContainerName, body.ItemName)
		if err != nil {
			return nil, err
		}
		req.Item = item
	}
	return s.protector.EnableProtection(ctx, req)
}

// policyFor fetches the policy a protection command refers to.
func (s *Server) policyFor(ctx context.Context, name string) (*policy.IaasVMPolicy, error) {
	if name == "" {
		return nil, errors.Annotate(protection.ErrInvalidRequest, "policy name is required")
	}
	return s.protector.GetPolicy(ctx, name)
}

// DisableProtection serves DELETE /containers/{container}/items/{item}.
func (s *Server) DisableProtection(w http.ResponseWriter, r *http.Request) {
	purge := false
	if v := r.URL.Query().Get("delete_backup_data"); v != "" {
		var err error
		if purge, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
			return
		}
	}
	release, err := s.hold()
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer release()

	item, err := s.protector.FindProtectedItem(r.Context(), chi.URLParam(r, "container"), chi.URLParam(r, "item"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.protector.DisableProtection(r.Context(), item, purge)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

// Backup serves POST /containers/{container}/items/{item}/backup.
func (s *Server) Backup(w http.ResponseWriter, r *http.Request) {
	var body BackupBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
			return
		}
	}
	release, err := s.hold()
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer release()

	item, err := s.protector.FindProtectedItem(r.Context(), chi.URLParam(r, "container"), chi.URLParam(r, "item"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.protector.TriggerBackup(r.Context(), item, body.ExpiryTime)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

// ListRecoveryPoints serves GET .../recovery-points?start=&end=, both
// RFC 3339. The range defaults to the last 30 days.
func (s *Server) ListRecoveryPoints(w http.ResponseWriter, r *http.Request) {
	end := time.Now().UTC()
	start := end.Add(-protection.MaxRecoveryPointRange)
	q := r.URL.Query()
	for name, dst := range map[string]*time.Time{"start": &start, "end": &end} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, errors.WithType(errors.Annotate(err, name), protection.ErrInvalidRequest))
			return
		}
		*dst = t
	}

	item, err := s.protector.FindProtectedItem(r.Context(), chi.URLParam(r, "container"), chi.URLParam(r, "item"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	points, err := s.protector.ListRecoveryPoints(r.Context(), item, start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

// GetRecoveryPoint serves GET .../recovery-points/{recoveryPoint}.
func (s *Server) GetRecoveryPoint(w http.ResponseWriter, r *http.Request) {
	item, err := s.protector.FindProtectedItem(r.Context(), chi.URLParam(r, "container"), chi.URLParam(r, "item"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	rp, err := s.protector.GetRecoveryPointDetails(r.Context(), item, chi.URLParam(r, "recoveryPoint"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rp)
}

// Restore serves POST .../recovery-points/{recoveryPoint}/restore.
func (s *Server) Restore(w http.ResponseWriter, r *http.Request) {
	var body RestoreBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
		return
	}
	release, err := s.hold()
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer release()

	item, err := s.protector.FindProtectedItem(r.Context(), chi.URLParam(r, "container"), chi.URLParam(r, "item"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	rp, err := s.protector.GetRecoveryPointDetails(r.Context(), item, chi.URLParam(r, "recoveryPoint"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.protector.TriggerRestore(r.Context(), rp, body.StorageAccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

// DefaultPolicy serves GET /policies/default.
func (s *Server) DefaultPolicy(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, &DefaultPolicyBody{
		Schedule:  s.protector.GetDefaultSchedulePolicy(),
		Retention: s.protector.GetDefaultRetentionPolicy(),
	})
}

// PolicyBody is the body of POST /policies and PUT /policies/{name}.
// Schedule and Retention hold YAML policy documents; retention tiers without
// times inherit the schedule run times.
type PolicyBody struct {
	Name      string `json:"name"`
	Schedule  string `json:"schedule,omitempty"`
	Retention string `json:"retention,omitempty"`
}

// PolicyView is how policies are returned by the API.
type PolicyView struct {
	*policy.IaasVMPolicy
	Schedule  policy.SchedulePolicy  `json:"schedule,omitempty"`
	Retention policy.RetentionPolicy `json:"retention,omitempty"`
	CronSpecs []string               `json:"cron_specs,omitempty"`
	NextRun   *time.Time             `json:"next_run,omitempty"`
}

func newPolicyView(p *policy.IaasVMPolicy, now time.Time) *PolicyView {
	v := &PolicyView{IaasVMPolicy: p, Schedule: p.Schedule, Retention: p.Retention}
	if sched, ok := p.Schedule.(*policy.SimpleSchedulePolicy); ok && sched != nil {
		if specs, err := sched.CronSpecs(); err == nil {
			v.CronSpecs = specs
		}
		if next, err := sched.NextRun(now); err == nil {
			v.NextRun = &next
		}
	}
	return v
}

// CreatePolicy serves POST /policies.
func (s *Server) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var body PolicyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
		return
	}
	schedule, retention, err := parsePolicyDocuments(&body, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var sp policy.SchedulePolicy
	if schedule != nil {
		sp = schedule
	}
	var rp policy.RetentionPolicy
	if retention != nil {
		rp = retention
	}
	p, err := s.protector.CreatePolicy(r.Context(), body.Name, workload.AzureVM, sp, rp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newPolicyView(p, time.Now()))
}

// ModifyPolicy serves PUT /policies/{name}. Either document may be left out.
func (s *Server) ModifyPolicy(w http.ResponseWriter, r *http.Request) {
	var body PolicyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.WithType(err, protection.ErrInvalidRequest))
		return
	}
	target, err := s.protector.GetPolicy(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	schedule, retention, err := parsePolicyDocuments(&body, target.Schedule)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var sp policy.SchedulePolicy
	if schedule != nil {
		sp = schedule
	}
	var rp policy.RetentionPolicy
	if retention != nil {
		rp = retention
	}
	p, err := s.protector.ModifyPolicy(r.Context(), target, sp, rp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPolicyView(p, time.Now()))
}

// parsePolicyDocuments decodes the YAML documents of body. current supplies
// the run times for retention tiers when body carries no schedule.
func parsePolicyDocuments(body *PolicyBody, current policy.SchedulePolicy) (*policy.SimpleSchedulePolicy, *policy.LongTermRetentionPolicy, error) {
	var schedule *policy.SimpleSchedulePolicy
	if body.Schedule != "" {
		var err error
		if schedule, err = policy.ParseScheduleYAML([]byte(body.Schedule)); err != nil {
			return nil, nil, errors.WithType(err, protection.ErrInvalidRequest)
		}
	}
	if body.Retention == "" {
		return schedule, nil, nil
	}
	var runTimes []time.Time
	if schedule != nil {
		runTimes = schedule.RunTimes
	} else if cur, ok := current.(*policy.SimpleSchedulePolicy); ok && cur != nil {
		runTimes = cur.RunTimes
	}
	retention, err := policy.ParseRetentionYAML([]byte(body.Retention), runTimes)
	if err != nil {
		return nil, nil, errors.WithType(err, protection.ErrInvalidRequest)
	}
	return schedule, retention, nil
}

// GetPolicy serves GET /policies/{name}.
func (s *Server) GetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.protector.GetPolicy(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPolicyView(p, time.Now()))
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, code, &errorBody{Error: err.Error()})
}

// statusCode maps an error to the HTTP status returned to callers.
func statusCode(err error) int {
	switch {
	case errors.Is(err, protection.ErrInvalidRequest),
		errors.Is(err, protection.ErrInvalidInputShape),
		errors.Is(err, protection.ErrRecoveryPointRange),
		errors.Is(err, protection.ErrWorkloadTypeMismatch),
		errors.Is(err, policy.ErrInvalidPolicy),
		errors.Is(err, policy.ErrMissingSchedule),
		errors.Is(err, policy.ErrMissingRetention),
		errors.Is(err, policy.ErrEmptyPolicyUpdate),
		errors.Is(err, policy.ErrUnsupportedPolicyType):
		return http.StatusBadRequest
	case errors.Is(err, protection.ErrItemNotFound),
		errors.Is(err, discovery.ErrNotDiscovered),
		backupapi.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, discovery.ErrRefreshFailed):
		return http.StatusBadGateway
	}
	var errResp *backupapi.ErrorResponse
	if errors.As(err, &errResp) {
		if errResp.StatusCode >= 400 && errResp.StatusCode < 500 {
			return errResp.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
