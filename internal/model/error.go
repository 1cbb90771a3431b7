package model

import "fmt"

// NotFoundError reports a configured model path that does not exist on
// disk. Its message is part of the output contract with callers and must
// not be reworded.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Model path does not exist: %s. Please verify the path and ensure the model files are present.", e.Path)
}
