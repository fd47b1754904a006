package server

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
)

const defaultPhotoListLimit = 50

// ListPhotos returns the newest photos, most recent first.
func (s *Server) ListPhotos(c *gin.Context) {
	limit := defaultPhotoListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			AbortWithError(c, invalidRequestError("limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	photos, err := s.photos.List(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]gin.H, 0, len(photos))
	for i := range photos {
		items = append(items, photoResponse(&photos[i]))
	}
	c.JSON(http.StatusOK, gin.H{"photos": items})
}

// GetPhoto returns one photo's metadata by pickup code.
func (s *Server) GetPhoto(c *gin.Context) {
	photo, err := s.lookupPhoto(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photoResponse(photo))
}

// GetPhotoImage serves the photo bytes themselves.
func (s *Server) GetPhotoImage(c *gin.Context) {
	photo, err := s.lookupPhoto(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	path := s.photos.Path(photo)
	if _, err := os.Stat(path); err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.Header("Content-Type", photo.ContentType)
	c.File(path)
}

func (s *Server) lookupPhoto(c *gin.Context) (*photo.Photo, error) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return nil, invalidRequestError("missing photo code")
	}
	return s.photos.GetByCode(c.Request.Context(), code)
}

func photoResponse(p *photo.Photo) gin.H {
	return gin.H{
		"id":        strconv.FormatInt(p.ID, 10),
		"code":      p.Code,
		"imageUrl":  p.ImageURL(),
		"sizeBytes": p.SizeBytes,
		"createdAt": p.CreatedAt,
	}
}
