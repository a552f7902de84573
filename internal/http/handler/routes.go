package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"hydroproc/internal/model"
	"hydroproc/internal/processes"
	"hydroproc/internal/schema"
	"hydroproc/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal: input plumbing and error translation only.
func RegisterRoutes(app *fiber.App, db *sql.DB, execSvc service.ExecutionService) {
	app.Get("/openapi.yaml", OpenAPISpec())
	app.Get("/docs", SwaggerUI())

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/processes", ListProcesses())
	app.Get("/processes/:id", GetProcess())
	app.Post("/processes/:id/execution", ExecuteProcess(execSvc))

	app.Get("/jobs", ListJobs(execSvc))
	app.Get("/jobs/:id", GetJob(execSvc))
	app.Delete("/jobs/:id", DeleteJob(execSvc))
	app.Get("/jobs/:id/artifacts/:name", GetArtifact(execSvc))
}

// OpenAPISpec serves the static API description.
func OpenAPISpec() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	}
}

// SwaggerUI serves a minimal Swagger UI page pointed at the API description.
func SwaggerUI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	}
}

// HealthCheck reports readiness: the database must answer a ping.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListProcesses returns the descriptors of every registered process.
func ListProcesses() fiber.Handler {
	return func(c *fiber.Ctx) error {
		all := processes.All()
		out := make([]*schema.Descriptor, len(all))
		for i, p := range all {
			out[i] = p.Descriptor()
		}
		return c.JSON(fiber.Map{"processes": out})
	}
}

// GetProcess returns one process descriptor.
func GetProcess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := processes.Get(c.Params("id"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "process not found")
		}
		return c.JSON(p.Descriptor())
	}
}

// ExecuteProcess runs a process synchronously from a multipart form. Form
// values matching file-typed inputs are treated as URL references; file
// parts are uploaded content; everything else is a literal input.
func ExecuteProcess(execSvc service.ExecutionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := processes.Get(c.Params("id"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "process not found")
		}

		literals := map[string]string{}
		refs := map[string]string{}
		var uploads []service.Upload

		form, err := c.MultipartForm()
		if err == nil {
			fileInputs := map[string]bool{}
			for _, in := range p.Descriptor().Inputs {
				if in.File {
					fileInputs[in.Name] = true
				}
			}

			for name, fhs := range form.File {
				if len(fhs) == 0 {
					continue
				}
				f, err := fhs[0].Open()
				if err != nil {
					return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT", "cannot open uploaded file "+name)
				}
				defer f.Close()
				uploads = append(uploads, service.Upload{Input: name, Filename: fhs[0].Filename, Content: f})
			}
			for name, vals := range form.Value {
				if len(vals) == 0 {
					continue
				}
				if fileInputs[name] {
					refs[name] = vals[0]
				} else {
					literals[name] = vals[0]
				}
			}
		}

		detail, err := execSvc.Execute(c.UserContext(), c.Params("id"), literals, uploads, refs)
		if err != nil {
			var viol *schema.Violation
			if errors.As(err, &viol) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT", viol.Error())
			}
			var pe *service.ProcessError
			if errors.As(err, &pe) {
				var job *model.Job
				if detail != nil {
					job = &detail.Job
				}
				return writeProcessError(c, job, pe.Msg)
			}
			if errors.Is(err, service.ErrUnknownProcess) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "process not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusCreated).JSON(detail)
	}
}

// ListJobs returns jobs with limit & offset pagination.
func ListJobs(execSvc service.ExecutionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := execSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// GetJob returns one job with its artifacts.
func GetJob(execSvc service.ExecutionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		detail, err := execSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "job not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(detail)
	}
}

// DeleteJob removes a job and its stored artifacts.
func DeleteJob(execSvc service.ExecutionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := execSvc.Delete(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "job not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetArtifact redirects to a presigned download URL for one artifact.
func GetArtifact(execSvc service.ExecutionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		url, err := execSvc.ArtifactURL(c.UserContext(), id, c.Params("name"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "artifact not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Redirect(url, fiber.StatusFound)
	}
}
