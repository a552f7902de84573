package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"hydroproc/internal/config"
	"hydroproc/internal/model"
	"hydroproc/internal/processes"
	"hydroproc/internal/repository"
	"hydroproc/internal/schema"
	"hydroproc/internal/storage"
)

var (
	ErrIDRequired     = errors.New("id is required")
	ErrNotFound       = errors.New("job not found")
	ErrUnknownProcess = errors.New("unknown process")
)

// ProcessError wraps an engine failure so the handler can distinguish it
// from schema violations and infrastructure errors.
type ProcessError struct {
	ProcessID string
	Msg       string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process %s failed: %s", e.ProcessID, e.Msg)
}

// Upload is one multipart file input.
type Upload struct {
	Input    string // descriptor input name
	Filename string
	Content  io.Reader
}

// JobDetail is the service-level DTO for one execution.
type JobDetail struct {
	Job       model.Job        `json:"job"`
	Artifacts []model.Artifact `json:"artifacts,omitempty"`
	// ArtifactURLs holds presigned download URLs keyed by artifact name,
	// populated on successful executions.
	ArtifactURLs map[string]string `json:"artifact_urls,omitempty"`
}

// JobListResult is the service-level DTO for paginated jobs.
type JobListResult struct {
	Items []model.Job `json:"data"`
	Total int         `json:"total"`
}

// ExecutionService defines the use cases around running processes and
// retrieving their results.
type ExecutionService interface {
	// Execute runs the named process synchronously: inputs are staged into a
	// scratch directory, validated against the descriptor, the process runs
	// and its artifacts are uploaded to object storage. The job record is
	// persisted either way; an engine failure is returned as *ProcessError
	// alongside the failed job.
	Execute(ctx context.Context, processID string, literals map[string]string, uploads []Upload, refs map[string]string) (*JobDetail, error)

	// Get returns one job with its artifacts.
	Get(ctx context.Context, id string) (*JobDetail, error)

	// List returns jobs using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*JobListResult, error)

	// Delete removes a job's artifacts from storage and its record.
	Delete(ctx context.Context, id string) error

	// ArtifactURL returns a presigned download URL for one artifact.
	ArtifactURL(ctx context.Context, jobID, name string) (string, error)
}

// executionService is the concrete ExecutionService.
type executionService struct {
	store storage.Storage
	repo  repository.JobRepository
	cfg   config.ProcessConfig
	http  *resty.Client
}

// NewExecutionService constructs an ExecutionService.
func NewExecutionService(store storage.Storage, repo repository.JobRepository, cfg config.ProcessConfig) ExecutionService {
	return &executionService{
		store: store,
		repo:  repo,
		cfg:   cfg,
		http: resty.New().
			SetTimeout(time.Duration(cfg.FetchTimeoutSec) * time.Second).
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)),
	}
}

func (s *executionService) Execute(ctx context.Context, processID string, literals map[string]string, uploads []Upload, refs map[string]string) (*JobDetail, error) {
	proc, ok := processes.Get(processID)
	if !ok {
		return nil, ErrUnknownProcess
	}

	workdir, err := os.MkdirTemp(s.cfg.WorkDir, "job-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	files, err := s.stageInputs(ctx, workdir, uploads, refs)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(files))
	for name := range files {
		present[name] = true
	}
	resolved, err := proc.Descriptor().Resolve(literals, present)
	if err != nil {
		return nil, err // *schema.Violation, mapped to 400 by the handler
	}

	job := model.Job{
		ID:        uuid.New().String(),
		ProcessID: processID,
		Status:    model.StatusAccepted,
		Inputs:    resolved,
		CreatedAt: time.Now().UTC(),
	}
	run := &processes.Run{Workdir: workdir, Literals: resolved, Files: files}

	started := time.Now()
	execErr := proc.Execute(ctx, run)
	finished := time.Now().UTC()
	job.DurationMS = time.Since(started).Milliseconds()
	job.FinishedAt = &finished

	if execErr != nil {
		job.Status = model.StatusFailed
		job.Message = s.formatProcessMessage(execErr)
		if err := s.repo.Create(ctx, &job, nil); err != nil {
			return nil, fmt.Errorf("persist failed job: %w", err)
		}
		return &JobDetail{Job: job}, &ProcessError{ProcessID: processID, Msg: job.Message}
	}

	artifacts, err := s.uploadArtifacts(ctx, &job, run.Outputs())
	if err != nil {
		return nil, err
	}
	job.Status = model.StatusSucceeded
	if err := s.repo.Create(ctx, &job, artifacts); err != nil {
		// roll the uploaded objects back so storage does not leak
		for _, a := range artifacts {
			if delErr := s.store.Delete(ctx, a.StorageKey); delErr != nil {
				return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
			}
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	urls := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		u, err := s.store.PresignGet(ctx, a.StorageKey, time.Duration(s.cfg.ArtifactURLExpirySec)*time.Second)
		if err != nil {
			continue // artifact remains reachable via GET /jobs/:id/artifacts/:name
		}
		urls[a.Name] = u
	}
	return &JobDetail{Job: job, Artifacts: artifacts, ArtifactURLs: urls}, nil
}

// stageInputs writes uploaded parts and fetched URL references into the
// scratch directory and returns input name to path.
func (s *executionService) stageInputs(ctx context.Context, workdir string, uploads []Upload, refs map[string]string) (map[string]string, error) {
	dir := filepath.Join(workdir, "inputs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	files := make(map[string]string, len(uploads)+len(refs))
	for _, up := range uploads {
		if up.Content == nil {
			return nil, &schema.Violation{Field: up.Input, Reason: "empty file part"}
		}
		fp := filepath.Join(dir, up.Input+"_"+filepath.Base(up.Filename))
		f, err := os.Create(fp)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(f, up.Content); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		files[up.Input] = fp
	}

	for name, ref := range refs {
		fp := filepath.Join(dir, name+"_remote")
		resp, err := s.http.R().SetContext(ctx).SetOutput(fp).Get(ref)
		if err != nil {
			return nil, &schema.Violation{Field: name, Reason: fmt.Sprintf("fetch %s: %v", ref, err)}
		}
		if resp.IsError() {
			return nil, &schema.Violation{Field: name, Reason: fmt.Sprintf("fetch %s: status %s", ref, resp.Status())}
		}
		files[name] = fp
	}
	return files, nil
}

// uploadArtifacts streams the produced files into object storage under the
// job's prefix.
func (s *executionService) uploadArtifacts(ctx context.Context, job *model.Job, outputs []processes.OutputFile) ([]model.Artifact, error) {
	artifacts := make([]model.Artifact, 0, len(outputs))
	for _, out := range outputs {
		f, err := os.Open(out.Path)
		if err != nil {
			return nil, fmt.Errorf("open artifact %s: %w", out.Name, err)
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		key := filepath.ToSlash(filepath.Join("jobs", job.ID, filepath.Base(out.Path)))
		info, err := s.store.Put(ctx, key, f, storage.PutObjectOptions{
			Size:        st.Size(),
			ContentType: out.MediaType,
			Metadata:    map[string]string{"process-id": job.ProcessID, "output": out.Name},
		})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("upload artifact %s: %w", out.Name, err)
		}
		artifacts = append(artifacts, model.Artifact{
			JobID:      job.ID,
			Name:       out.Name,
			StorageKey: info.Key,
			MediaType:  out.MediaType,
			Size:       info.Size,
		})
	}
	return artifacts, nil
}

// formatProcessMessage renders an engine failure for callers: control
// characters stripped, whitespace collapsed, length capped.
func (s *executionService) formatProcessMessage(err error) string {
	msg := strings.Join(strings.Fields(strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) {
			return ' '
		}
		return r
	}, err.Error())), " ")

	limit := s.cfg.MaxErrorLength
	if limit <= 0 {
		limit = 300
	}
	if len(msg) > limit {
		msg = msg[:limit] + "..."
	}
	return msg
}

func (s *executionService) Get(ctx context.Context, id string) (*JobDetail, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	job, arts, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &JobDetail{Job: *job, Artifacts: arts}, nil
}

func (s *executionService) List(ctx context.Context, limit, offset int) (*JobListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &JobListResult{Items: res.Items, Total: res.Total}, nil
}

// Delete removes the job's artifacts from storage first, then the record.
func (s *executionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	_, arts, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	for _, a := range arts {
		if err := s.store.Delete(ctx, a.StorageKey); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *executionService) ArtifactURL(ctx context.Context, jobID, name string) (string, error) {
	if jobID == "" || name == "" {
		return "", ErrIDRequired
	}
	_, arts, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	for _, a := range arts {
		if a.Name == name {
			expiry := time.Duration(s.cfg.ArtifactURLExpirySec) * time.Second
			return s.store.PresignGet(ctx, a.StorageKey, expiry)
		}
	}
	return "", ErrNotFound
}
