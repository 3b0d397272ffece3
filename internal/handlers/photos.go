package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"decentra/internal/middleware"
	"decentra/internal/models"
	"decentra/internal/service"
)

// maxUploadBody covers four full-size photos plus multipart overhead.
const maxUploadBody = 4*service.MaxPhotoSize + 1<<20

type photoResponse struct {
	ID             int64           `json:"id"`
	Position       string          `json:"position"`
	URL            string          `json:"url"`
	Rust           string          `json:"rust"`
	Dent           string          `json:"dent"`
	Scratch        string          `json:"scratch"`
	Dust           string          `json:"dust"`
	DamageClasses  []string        `json:"damageClasses"`
	Masks          json.RawMessage `json:"masks,omitempty"`
	AnalysisStatus string          `json:"analysisStatus"`
	LastUpdated    time.Time       `json:"lastUpdated"`
}

func (h HandlerSet) UploadPhotos(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)

	files := make([]service.UploadFile, 0, len(models.PhotoPositions))
	for _, pos := range models.PhotoPositions {
		header, err := c.FormFile(string(pos))
		if err != nil {
			badRequest(c, fmt.Sprintf("%s photo is required", pos))
			return
		}
		if header.Size > service.MaxPhotoSize {
			badRequest(c, fmt.Sprintf("file %s exceeds maximum size of 10MB", header.Filename))
			return
		}
		data, err := readFormFile(header)
		if err != nil {
			badRequest(c, fmt.Sprintf("cannot read %s photo", pos))
			return
		}
		files = append(files, service.UploadFile{Position: pos, Filename: header.Filename, Data: data})
	}

	result, err := h.photos.Upload(c.Request.Context(), claims.UserID, files)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.PhotoUpload(result.Analyzed)
	}

	message := "photos uploaded and analyzed"
	if !result.Analyzed {
		message = "photos uploaded, analysis scheduled"
	}
	c.JSON(http.StatusOK, gin.H{"photoIds": result.PhotoIDs, "analyzed": result.Analyzed, "message": message})
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, service.MaxPhotoSize+1))
}

func (h HandlerSet) ListPhotos(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	views, err := h.photos.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": toPhotoResponses(views)})
}

func toPhotoResponses(views []service.PhotoView) []photoResponse {
	out := make([]photoResponse, 0, len(views))
	for _, v := range views {
		classes := v.Photo.Findings.DamageClasses
		if classes == nil {
			classes = []string{}
		}
		out = append(out, photoResponse{
			ID:             v.Photo.ID,
			Position:       string(v.Photo.Position),
			URL:            v.URL,
			Rust:           v.Photo.Findings.Rust,
			Dent:           v.Photo.Findings.Dent,
			Scratch:        v.Photo.Findings.Scratch,
			Dust:           v.Photo.Findings.Dust,
			DamageClasses:  classes,
			Masks:          v.Photo.Findings.Masks,
			AnalysisStatus: string(v.Photo.AnalysisStatus),
			LastUpdated:    v.Photo.LastUpdated,
		})
	}
	return out
}
