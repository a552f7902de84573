package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hydroproc/internal/model"
	"hydroproc/internal/schema"
	"hydroproc/internal/service"
	serviceMocks "hydroproc/internal/service/mocks"
)

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListProcesses(t *testing.T) {
	app := fiber.New()
	app.Get("/processes", ListProcesses())

	req := httptest.NewRequest(http.MethodGet, "/processes", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Processes []schema.Descriptor `json:"processes"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	require.NotEmpty(t, body.Processes)

	ids := map[string]bool{}
	for _, d := range body.Processes {
		ids[d.ID] = true
	}
	assert.True(t, ids["raven-gr4j-cemaneige"])
	assert.True(t, ids["regionalisation"])
	assert.True(t, ids["zonal-stats"])
}

func TestGetProcess(t *testing.T) {
	app := fiber.New()
	app.Get("/processes/:id", GetProcess())

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/processes/climatology-esp", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var d schema.Descriptor
		json.NewDecoder(resp.Body).Decode(&d)
		assert.Equal(t, "climatology-esp", d.ID)
		assert.NotEmpty(t, d.Inputs)
		assert.NotEmpty(t, d.Outputs)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/processes/nope", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func multipartBody(t *testing.T, values map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range values {
		require.NoError(t, writer.WriteField(k, v))
	}
	for name, content := range files {
		part, err := writer.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		part.Write([]byte(content))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestExecuteProcess(t *testing.T) {
	mockSvc := new(serviceMocks.MockExecutionService)
	app := fiber.New()
	app.Post("/processes/:id/execution", ExecuteProcess(mockSvc))

	t.Run("success", func(t *testing.T) {
		detail := &service.JobDetail{
			Job:       model.Job{ID: uuid.New().String(), ProcessID: "raven-hmets", Status: model.StatusSucceeded},
			Artifacts: []model.Artifact{{Name: "hydrograph"}},
		}
		mockSvc.On("Execute", mock.Anything, "raven-hmets",
			map[string]string{"area": "4250"}, mock.Anything, map[string]string{}).
			Return(detail, nil).Once()

		body, ct := multipartBody(t, map[string]string{"area": "4250"}, map[string]string{"ts": "date,precip,tmin,tmax\n"})
		req := httptest.NewRequest(http.MethodPost, "/processes/raven-hmets/execution", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result service.JobDetail
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, detail.Job.ID, result.Job.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("file input as url reference", func(t *testing.T) {
		mockSvc.On("Execute", mock.Anything, "raven-hmets",
			map[string]string{}, mock.Anything, map[string]string{"ts": "https://example.org/met.csv"}).
			Return(&service.JobDetail{Job: model.Job{Status: model.StatusSucceeded}}, nil).Once()

		body, ct := multipartBody(t, map[string]string{"ts": "https://example.org/met.csv"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/processes/raven-hmets/execution", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown process", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/processes/no-such/execution", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("schema violation maps to 400", func(t *testing.T) {
		mockSvc.On("Execute", mock.Anything, "zonal-stats", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &schema.Violation{Field: "raster", Reason: "file input is required"}).Once()

		body, ct := multipartBody(t, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/processes/zonal-stats/execution", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_INPUT", res.Error.Code)
		assert.Contains(t, res.Error.Message, "raster")
		mockSvc.AssertExpectations(t)
	})

	t.Run("engine failure maps to 422", func(t *testing.T) {
		detail := &service.JobDetail{
			Job: model.Job{ID: uuid.New().String(), Status: model.StatusFailed, Message: "simulation produced NaN discharge"},
		}
		mockSvc.On("Execute", mock.Anything, "raven-hbv-ec", mock.Anything, mock.Anything, mock.Anything).
			Return(detail, &service.ProcessError{ProcessID: "raven-hbv-ec", Msg: detail.Job.Message}).Once()

		body, ct := multipartBody(t, nil, map[string]string{"ts": "x"})
		req := httptest.NewRequest(http.MethodPost, "/processes/raven-hbv-ec/execution", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "PROCESS_ERROR", res.Error.Code)
		assert.Contains(t, res.Error.Message, "NaN")
		require.NotNil(t, res.Job)
		assert.Equal(t, model.StatusFailed, res.Job.Status)
		mockSvc.AssertExpectations(t)
	})
}

func TestListJobs(t *testing.T) {
	mockSvc := new(serviceMocks.MockExecutionService)
	app := fiber.New()
	app.Get("/jobs", ListJobs(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.JobListResult{
			Items: []model.Job{{ID: uuid.New().String(), ProcessID: "zonal-stats"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/jobs?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.JobListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/jobs?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetJob(t *testing.T) {
	mockSvc := new(serviceMocks.MockExecutionService)
	app := fiber.New()
	app.Get("/jobs/:id", GetJob(mockSvc))

	id := uuid.New().String()

	t.Run("found", func(t *testing.T) {
		detail := &service.JobDetail{Job: model.Job{ID: id, Status: model.StatusSucceeded}}
		mockSvc.On("Get", mock.Anything, id).Return(detail, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteJob(t *testing.T) {
	mockSvc := new(serviceMocks.MockExecutionService)
	app := fiber.New()
	app.Delete("/jobs/:id", DeleteJob(mockSvc))

	id := uuid.New().String()

	t.Run("deleted", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/jobs/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, id).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/jobs/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetArtifact(t *testing.T) {
	mockSvc := new(serviceMocks.MockExecutionService)
	app := fiber.New()
	app.Get("/jobs/:id/artifacts/:name", GetArtifact(mockSvc))

	id := uuid.New().String()

	t.Run("redirects to presigned url", func(t *testing.T) {
		mockSvc.On("ArtifactURL", mock.Anything, id, "hydrograph").
			Return("https://minio.local/signed", nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/artifacts/hydrograph", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://minio.local/signed", resp.Header.Get("Location"))
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("ArtifactURL", mock.Anything, id, "nope").
			Return("", service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/artifacts/nope", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}
