package handler

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
)

// writeEvent writes one Server-Sent Event frame and flushes it. Nil data is sent as {}.
func writeEvent(w gin.ResponseWriter, event string, data any) error {
	payload := []byte("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", event, err)
		}
		payload = b
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}
