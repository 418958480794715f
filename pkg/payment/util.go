package payment

import (
	"encoding/json"
	"fmt"
	"io"
)

// readJSON into interface
func readJSON(in io.Reader, v interface{}) error {
	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("io read: %w", err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// readString into string
func readString(in io.Reader) string {
	body, err := io.ReadAll(in)
	if err != nil {
		return ""
	}

	return string(body)
}
