package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-api/internal/models"
	"github.com/noah-isme/escola-api/internal/service"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
	"github.com/noah-isme/escola-api/pkg/response"
)

// MaterialHandler exposes study material endpoints.
type MaterialHandler struct {
	service     *service.MaterialService
	students    *service.StudentService
	maxFileSize int64
}

// NewMaterialHandler constructs a material handler.
func NewMaterialHandler(svc *service.MaterialService, students *service.StudentService, maxFileSize int64) *MaterialHandler {
	return &MaterialHandler{service: svc, students: students, maxFileSize: maxFileSize}
}

// Upload godoc
// @Summary Upload study material
// @Description Store a file and attach it to a class
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Material title"
// @Param class_id formData string true "Class ID"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /materials [post]
func (h *MaterialHandler) Upload(c *gin.Context) {
	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer file.Close()

	req := service.UploadMaterialRequest{
		Title:    c.PostForm("title"),
		ClassID:  c.PostForm("class_id"),
		Filename: fileHeader.Filename,
	}

	material, err := h.service.Upload(c.Request.Context(), req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, material)
}

// List godoc
// @Summary List all materials
// @Tags Materials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /materials [get]
func (h *MaterialHandler) List(c *gin.Context) {
	materials, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}

// Delete godoc
// @Summary Delete material
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 204 {object} response.Envelope
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MyMaterials godoc
// @Summary Materials of the student's class
// @Tags Materials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/materials [get]
func (h *MaterialHandler) MyMaterials(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.students.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	materials, err := h.service.ListForStudent(c.Request.Context(), student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}

// Download godoc
// @Summary Download a material file
// @Description Stream the stored file; students only reach their class files
// @Tags Materials
// @Produce octet-stream
// @Param id path string true "Material ID"
// @Success 200 {file} binary
// @Router /materials/{id}/download [get]
func (h *MaterialHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requester := &models.User{ID: claims.UserID, Role: claims.Role}
	if claims.Role == models.RoleStudent {
		student, err := h.students.Get(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		requester = student
	}

	material, file, err := h.service.OpenFile(c.Request.Context(), c.Param("id"), requester)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stat file"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", material.StoredFile))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
