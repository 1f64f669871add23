// Package commands implements the someipdctl CLI commands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/someipd/someipd/internal/server"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatRSIs renders a slice of required service instances in the
// requested format.
func formatRSIs(rsis []server.RequiredServiceInstance, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(struct {
			RequiredServiceInstances []server.RequiredServiceInstance `json:"required_service_instances"`
		}{rsis})
	case formatTable:
		return formatRSIsTable(rsis), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatApplications renders a slice of connected applications in the
// requested format.
func formatApplications(apps []server.Application, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(struct {
			Applications []server.Application `json:"applications"`
		}{apps})
	case formatTable:
		return formatApplicationsTable(apps), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatEvent renders one streamed service event in the requested format.
func formatEvent(ev server.ServiceEvent, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(ev)
	case formatTable:
		return formatEventLine(ev), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(out) + "\n", nil
}

func formatRSIsTable(rsis []server.RequiredServiceInstance) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEPLOYMENT\tSERVICE\tMAJOR\tINSTANCE\tPOLICY\tSTATE\tOFFERS\tREQUESTERS")

	for _, r := range rsis {
		fmt.Fprintf(w, "%s\t0x%04x\t%d\t0x%04x\t%s\t%s\t%d\t%d\n",
			r.Deployment, r.Service, r.Major, r.Instance, r.MinorVersionPolicy, r.State, r.ActiveOffers, r.Requesters)
	}

	_ = w.Flush()
	return buf.String()
}

func formatApplicationsTable(apps []server.Application) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREQUESTED\tOFFERED")

	for _, a := range apps {
		fmt.Fprintf(w, "%d\t%d\t%d\n", a.Id, a.RequestedServices, a.OfferedServices)
	}

	_ = w.Flush()
	return buf.String()
}

func formatEventLine(ev server.ServiceEvent) string {
	transition := "STOPPED"
	if ev.Started {
		transition = "STARTED"
	}
	return fmt.Sprintf("%s  %-9s deployment=%s service=0x%04x major=%d instance=0x%04x",
		ev.Timestamp.Format(time.RFC3339), transition, ev.Deployment, ev.Service, ev.Major, ev.Instance)
}
