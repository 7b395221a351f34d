// Package health probes a SAT>IP tuner's capability endpoint before the
// Scan Driver opens an RTSP session against it.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stpf99/mini-satip-scan/internal/httpclient"
)

// CheckTuner fetches descURL, the device's UPnP description document
// (conventionally http://host:1400/desc.xml, the SAT>IP discovery
// default), and reports an error if the device is unreachable or returns
// a non-200 status.
func CheckTuner(ctx context.Context, descURL string) error {
	if descURL == "" {
		return fmt.Errorf("health: no tuner description URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, descURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpclient.Default().Do(req)
	if err != nil {
		return fmt.Errorf("health: tuner unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: tuner returned HTTP %d", resp.StatusCode)
	}
	return nil
}
