// Package report downloads the static HTML reports the backend publishes
// for its detection models.
package report

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Kinds lists the reports the backend serves.
var Kinds = []string{"binary", "multiclass"}

const maxReportBytes = 32 << 20

// Path is the URL path of the report for kind.
func Path(kind string) string {
	return "/reports/" + kind + "_report.html"
}

// Fetch downloads the report for kind from baseURL.
func Fetch(ctx context.Context, client *http.Client, baseURL, kind string) ([]byte, error) {
	if !known(kind) {
		return nil, fmt.Errorf("unknown report %q (want one of %s)", kind, strings.Join(Kinds, ", "))
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+Path(kind), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s report: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s report: server error (%d)", kind, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s report: %w", kind, err)
	}
	return body, nil
}

func known(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
