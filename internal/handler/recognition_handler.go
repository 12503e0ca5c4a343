package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-face-api/internal/service"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
	"github.com/noah-isme/sma-face-api/pkg/response"
)

// RecognitionHandler exposes face enrollment and live recognition.
type RecognitionHandler struct {
	enrollment  *service.EnrollmentService
	recognition *service.RecognitionService
}

// NewRecognitionHandler constructs RecognitionHandler.
func NewRecognitionHandler(enrollment *service.EnrollmentService, recognition *service.RecognitionService) *RecognitionHandler {
	return &RecognitionHandler{enrollment: enrollment, recognition: recognition}
}

// Enroll godoc
// @Summary Enroll a student's face
// @Description Upload pose images to build the student's reference set. All poses must contain a detectable face or the whole call fails.
// @Tags Recognition
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student ID"
// @Param images formData file true "Pose images"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/enroll [post]
func (h *RecognitionHandler) Enroll(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form required"))
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one pose image is required"))
		return
	}

	images := make([][]byte, 0, len(files))
	for _, file := range files {
		data, err := readUpload(file)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
			return
		}
		images = append(images, data)
	}

	count, err := h.enrollment.Enroll(c.Request.Context(), c.Param("id"), images)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": c.Param("id"), "embeddings_saved": count}, nil)
}

// Recognize godoc
// @Summary Recognize a face and record attendance
// @Description Match one captured frame against the enrolled roster. A match above threshold records a present row for the slot.
// @Tags Recognition
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Captured frame"
// @Param subject_name formData string true "Subject name"
// @Param class_time formData string true "Class time slot"
// @Param date formData string false "Date (YYYY-MM-DD, defaults to today)"
// @Param threshold formData number false "Similarity threshold override"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /recognize [post]
func (h *RecognitionHandler) Recognize(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	image, err := readUpload(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}

	req := service.RecognizeRequest{
		Image:       image,
		SubjectName: c.PostForm("subject_name"),
		ClassTime:   c.PostForm("class_time"),
	}
	if raw := c.PostForm("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date format"))
			return
		}
		req.Date = date
	}
	if raw := c.PostForm("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid threshold"))
			return
		}
		req.Threshold = threshold
	}

	result, err := h.recognition.Recognize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
