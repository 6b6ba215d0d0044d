package workflow

import "errors"

// Error taxonomy of the classification workflow. All of these surface
// to the user only through the Notifier; none are fatal to the process.
var (
	ErrOversize         = errors.New("image exceeds the upload size limit")
	ErrNoImage          = errors.New("no image uploaded")
	ErrBusy             = errors.New("a classification is already in progress")
	ErrDecode           = errors.New("could not decode image")
	ErrModelAcquisition = errors.New("failed to load model")
	ErrInference        = errors.New("classification failed")
)
