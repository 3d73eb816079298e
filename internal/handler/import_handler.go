package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumen-edu/posgrad-api/internal/models"
	"github.com/lumen-edu/posgrad-api/internal/service"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
	"github.com/lumen-edu/posgrad-api/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ImportHandler wires spreadsheet upload endpoints to the import service.
type ImportHandler struct {
	service     *service.ImportService
	maxFileSize int64
}

// NewImportHandler creates a new handler.
func NewImportHandler(svc *service.ImportService, maxFileSize int64) *ImportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &ImportHandler{service: svc, maxFileSize: maxFileSize}
}

// Upload godoc
// @Summary Import spreadsheet
// @Description Process an .xlsx upload for the given kind (courses, people, disciplines)
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param kind path string true "Import kind"
// @Param file formData file true "Spreadsheet file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /imports/{kind} [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	kind := models.UploadKind(c.Param("kind"))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file upload"))
		return
	}
	if fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", h.maxFileSize)))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload"))
		return
	}
	defer file.Close()

	actor := actorFromContext(c)
	var summary *models.ImportSummary
	switch kind {
	case models.UploadKindCourses:
		summary, err = h.service.ImportCourses(c.Request.Context(), actor, fileHeader.Filename, file)
	case models.UploadKindPeople:
		summary, err = h.service.ImportPeople(c.Request.Context(), actor, fileHeader.Filename, file)
	case models.UploadKindDisciplines:
		summary, err = h.service.ImportDisciplines(c.Request.Context(), actor, fileHeader.Filename, file)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "unknown import kind")
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// Template godoc
// @Summary Download import template
// @Description Returns an empty spreadsheet with the expected columns for the kind
// @Tags Imports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param kind path string true "Import kind"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /imports/{kind}/template [get]
func (h *ImportHandler) Template(c *gin.Context) {
	payload, filename, err := h.service.Template(models.UploadKind(c.Param("kind")))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, payload)
}

// History godoc
// @Summary List recent imports
// @Tags Imports
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /imports/history [get]
func (h *ImportHandler) History(c *gin.Context) {
	uploads, err := h.service.History(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, uploads, nil)
}
