package controller

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// IndexController serves the pre-built frontend bundle for every path no API route matched.
type IndexController struct {
	root string
}

// NewIndexController installs the frontend as the engine's fallback handler.
func NewIndexController(engine *gin.Engine, frontendDir string) *IndexController {
	a := &IndexController{root: frontendDir}
	engine.NoRoute(gzip.Gzip(gzip.DefaultCompression), a.serve)
	return a
}

// serve returns the requested file, or index.html so client-side routes keep working.
func (a *IndexController) serve(c *gin.Context) {
	reqPath := c.Request.URL.Path
	if reqPath == "/api" || strings.HasPrefix(reqPath, "/api/") {
		jsonError(c, http.StatusNotFound, "Not found", "No API endpoint at "+reqPath)
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	if file, ok := a.lookup(reqPath); ok {
		c.File(file)
		return
	}
	if index, ok := a.lookup("/index.html"); ok {
		c.File(index)
		return
	}
	c.AbortWithStatus(http.StatusNotFound)
}

// lookup maps a URL path to a regular file inside root.
func (a *IndexController) lookup(urlPath string) (string, bool) {
	if a.root == "" {
		return "", false
	}
	name := filepath.Join(a.root, filepath.FromSlash(path.Clean("/"+urlPath)))
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return name, true
}
