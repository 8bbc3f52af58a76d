// Package web holds the page served by the monitoring server.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

//go:embed dist
var dist embed.FS

// DevEnv is the environment variable that makes Assets serve the page from
// the source tree instead of the copy embedded in the binary.
const DevEnv = "HYPERBUS_MONITOR_DEV"

// Assets returns the files of the monitoring page.
func Assets() http.FileSystem {
	if devMode() {
		if dir, ok := sourceDir(); ok {
			log.Printf("monitor: serving the page from %s", dir)
			return http.Dir(dir)
		}
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		log.Panic(err)
	}

	return http.FS(sub)
}

func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevEnv))
	return err == nil && on
}

func sourceDir() (string, bool) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}

	return filepath.Join(filepath.Dir(file), "dist"), true
}
