// Package server exposes the pipeline's JSON artifacts over HTTP so an
// external renderer can pull them instead of reading the output directory.
package server

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"albumrank/sentry"
)

// Artifacts served relative to the output directory.
var artifacts = []string{"albums.json", "years.json", "ebay.json", "searched-albums.json"}

func NewRouter(outputDir string) *gin.Engine {
	router := gin.Default()
	router.Use(sentry.GetSentryGin())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for _, name := range artifacts {
		router.StaticFile("/"+name, filepath.Join(outputDir, name))
	}

	return router
}

func Serve(outputDir, port string) error {
	if port == "" {
		port = "8080"
	}
	return http.ListenAndServe(":"+port, NewRouter(outputDir))
}
