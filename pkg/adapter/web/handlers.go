package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/pkg/dicomweb"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/gin-gonic/gin"
)

// ContentTypeDicomJSON is the media type of DICOM JSON responses.
const ContentTypeDicomJSON = "application/dicom+json"

func (a *HTTPAdapter) registerRoutes(r *gin.Engine) {
	r.GET("/readyz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/dicomweb")
	api.GET("/studies", a.handleStudies)
	api.GET("/studies/:study/series", a.handleSeries)
	api.GET("/studies/:study/series/:series/metadata", a.handleSeriesMetadata)
	api.GET("/studies/:study/series/:series/instances/:sop/frames/:frame", a.handleFrame)
}

func (a *HTTPAdapter) handleStudies(c *gin.Context) {
	limit := pypx.NoLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(c, pypx.InvalidArgument("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	q := pypx.Query{
		StudyInstanceUID: c.Query("StudyInstanceUID"),
		PatientID:        c.Query("PatientID"),
	}

	objects, err := a.service.QueryStudies(c.Request.Context(), q, limit)
	if err != nil {
		a.writeError(c, err)
		return
	}
	writeObjects(c, objects)
}

func (a *HTTPAdapter) handleSeries(c *gin.Context) {
	objects, err := a.service.ListSeries(c.Request.Context(), c.Param("study"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	writeObjects(c, objects)
}

func (a *HTTPAdapter) handleSeriesMetadata(c *gin.Context) {
	objects, err := a.service.SeriesMetadata(c.Request.Context(), c.Param("study"), c.Param("series"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	writeObjects(c, objects)
}

func (a *HTTPAdapter) handleFrame(c *gin.Context) {
	frame, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		a.writeError(c, pypx.InvalidArgument("frame must be an integer"))
		return
	}

	body, err := a.service.GetFrame(c.Request.Context(), c.Param("series"), c.Param("sop"), frame)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, dicomweb.ResponseContentType(a.service.Boundary()), body)
}

func writeObjects(c *gin.Context, objects []dicomweb.Object) {
	if objects == nil {
		objects = []dicomweb.Object{}
	}
	data, err := json.Marshal(objects)
	if err != nil {
		logger.Error("Encoding response of %s: %v", c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cannot encode response"})
		return
	}
	c.Data(http.StatusOK, ContentTypeDicomJSON, data)
}

// StatusCode maps an error returned by the service to an HTTP status.
//
// Only absent resources are 404; a series directory that does not exist
// counts as absent. Bad parameters are 400 and everything else is a server
// failure.
func StatusCode(err error) int {
	var e *pypx.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Code {
	case pypx.ErrNotFound:
		return http.StatusNotFound
	case pypx.ErrParentDirNotReadable:
		if errors.Is(err, fs.ErrNotExist) {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	case pypx.ErrInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *HTTPAdapter) writeError(c *gin.Context, err error) {
	status := StatusCode(err)
	id := c.GetString(requestIDKey)

	switch {
	case status == http.StatusNotFound:
		logger.Debug("%s: %v (request %s)", c.Request.URL.Path, err, id)
	case status < 500:
		logger.Warn("%s: %v (request %s)", c.Request.URL.Path, err, id)
	default:
		logger.Error("%s: %v (request %s)", c.Request.URL.Path, err, id)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
