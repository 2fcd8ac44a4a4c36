package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/AngelCh415/mediaplan/internal/utils"
)

// backoff exponencial + jitter
var fetchBackoff = utils.NewBackoff(100*time.Millisecond, 150*time.Millisecond, 2)

// GetJSONWithRetry decodes url into dst, retrying transport errors and
// retryable statuses. A 404 or a bad payload fails at once.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, url string, dst any) error {
	var final error
	err := fetchBackoff.Do(ctx, func(int) error {
		err := getJSON(ctx, c, url, dst)
		var se *StatusError
		if errors.Is(err, errDecode) || (errors.As(err, &se) && !se.Retryable()) {
			final = err
			return nil
		}
		return err
	})
	if final != nil {
		return final
	}
	return err
}
