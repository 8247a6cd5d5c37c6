//go:build !gocv

package detection

const openCVBuilt = false

// matchOpenCV is unavailable without the gocv build tag.
func matchOpenCV(f, t *intensity) (*ResponseSurface, error) {
	return nil, EngineOpenCV.Check()
}
