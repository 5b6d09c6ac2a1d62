package utils

import "sync"

// gdalMu guards GDAL, whose dataset handles are not safe for concurrent use.
var gdalMu sync.Mutex

func ExecuteWithMutex(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}
