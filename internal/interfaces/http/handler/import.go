package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	importapp "github.com/propbill/backend/internal/application/import"
	"github.com/propbill/backend/internal/interfaces/http/dto"
)

// defaultMaxUploadSize applies when no upload limit is configured (10MB)
const defaultMaxUploadSize = 10 * 1024 * 1024

// ImportHandler handles spreadsheet uploads and import run lookups
type ImportHandler struct {
	BaseHandler
	service       *importapp.Service
	maxUploadSize int64
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(service *importapp.Service, maxUploadSize int64) *ImportHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &ImportHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// Upload godoc
//
//	@Summary		Import a utility account spreadsheet
//	@Description	Parses the first worksheet of an .xlsx or .csv file and writes providers, properties, tenants and utility accounts.
//	@Description	With "Accept: text/event-stream" progress lines are streamed as "progress" events followed by a "summary" or "error" event.
//	@Tags			imports
//	@ID				uploadImport
//	@Accept			multipart/form-data
//	@Produce		json
//	@Produce		text/event-stream
//	@Param			file	formData	file	true	"Spreadsheet (.xlsx or .csv)"
//	@Success		201		{object}	Envelope[importapp.Summary]
//	@Failure		400		{object}	Failure
//	@Failure		413		{object}	Failure
//	@Failure		500		{object}	Envelope[importapp.Summary]
//	@Router			/imports [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+1024*1024)

	upload, ok := h.readUpload(c)
	if !ok {
		return
	}

	if wantsEventStream(c) {
		h.stream(c, upload)
		return
	}

	summary, err := h.service.ImportUpload(c.Request.Context(), upload)
	if err != nil {
		h.handleImportError(c, err, summary)
		return
	}
	h.Created(c, summary)
}

// readUpload pulls the "file" part into memory, writing the error response
// itself when it fails
func (h *ImportHandler) readUpload(c *gin.Context) (importapp.Upload, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeFileTooLarge, "Upload exceeds the maximum allowed size")
			return importapp.Upload{}, false
		}
		h.BadRequest(c, "A spreadsheet must be uploaded in the \"file\" field")
		return importapp.Upload{}, false
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeFileTooLarge, "Upload exceeds the maximum allowed size")
		return importapp.Upload{}, false
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		h.InternalError(c, "Failed to read uploaded file")
		return importapp.Upload{}, false
	}
	if int64(len(data)) > h.maxUploadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeFileTooLarge, "Upload exceeds the maximum allowed size")
		return importapp.Upload{}, false
	}

	return importapp.Upload{
		FileName:    filepath.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

// stream runs the import while forwarding each progress line as an SSE
// event. The pipeline calls back on this goroutine, so writes to the
// response never race.
func (h *ImportHandler) stream(c *gin.Context, upload importapp.Upload) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	progress := func(line string) {
		c.SSEvent("progress", dto.ImportProgressEvent{Line: line})
		c.Writer.Flush()
	}

	summary, err := h.service.ImportUpload(c.Request.Context(), upload, importapp.WithProgress(progress))
	if err != nil {
		_ = c.Error(err)
		_, code, message := importErrorStatus(err)
		c.SSEvent("error", dto.NewPartialResponse(summary, code, message, getRequestID(c)))
		c.Writer.Flush()
		return
	}
	c.SSEvent("summary", dto.NewSuccessResponse(summary))
	c.Writer.Flush()
}

func (h *ImportHandler) handleImportError(c *gin.Context, err error, summary importapp.Summary) {
	_ = c.Error(err)
	status, code, message := importErrorStatus(err)
	c.JSON(status, dto.NewPartialResponse(summary, code, message, getRequestID(c)))
}

// importErrorStatus classifies an import failure. Parse errors are the
// caller's fault; write errors carry the store's message.
func importErrorStatus(err error) (int, string, string) {
	if importapp.IsParseError(err) {
		return http.StatusBadRequest, dto.ErrCodeImportParse, err.Error()
	}
	return errorStatus(err)
}

// GetRun godoc
//
//	@Summary		Get the recorded outcome of an import
//	@Tags			imports
//	@ID				getImportRun
//	@Produce		json
//	@Param			id	path		string	true	"Import ID"
//	@Success		200	{object}	Envelope[dto.ImportRunResponse]
//	@Failure		404	{object}	Failure
//	@Router			/imports/{id} [get]
func (h *ImportHandler) GetRun(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToImportRunResponse(run))
}

// RegisterRoutes registers the import routes
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	imports := rg.Group("/imports")
	imports.POST("", h.Upload)
	imports.GET("/:id", h.GetRun)
}

func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}
