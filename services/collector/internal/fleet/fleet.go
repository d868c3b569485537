package fleet

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/models"
)

// Resolver looks up the addresses of a host name. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// LoadFile reads a YAML fleet definition.
func LoadFile(path string) ([]models.FleetEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}

	var file models.FleetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode fleet file: %w", err)
	}
	return normalize(file.Sources)
}

// FromList builds entries from a comma separated list of host names; each
// name doubles as the source id.
func FromList(list string) ([]models.FleetEntry, error) {
	entries := make([]models.FleetEntry, 0)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		entries = append(entries, models.FleetEntry{ID: name})
	}
	return normalize(entries)
}

func normalize(entries []models.FleetEntry) ([]models.FleetEntry, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]models.FleetEntry, 0, len(entries))
	for i, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		e.Host = strings.TrimSpace(e.Host)
		e.Address = strings.TrimSpace(e.Address)
		if e.ID == "" {
			return nil, fmt.Errorf("fleet entry %d: id is required", i)
		}
		if strings.ContainsAny(e.ID, `/\`) {
			return nil, fmt.Errorf("fleet entry %q: id must not contain path separators", e.ID)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("fleet entry %q: duplicate id", e.ID)
		}
		seen[e.ID] = true
		if e.Host == "" {
			e.Host = e.ID
		}
		out = append(out, e)
	}
	return out, nil
}

// Resolve turns entries into sources. Entries whose host cannot be resolved
// come back with an empty Address; that is logged, not returned as an error.
func Resolve(ctx context.Context, r Resolver, entries []models.FleetEntry, logger logrus.FieldLogger) []models.Source {
	sources := make([]models.Source, 0, len(entries))
	for _, e := range entries {
		src := models.Source{ID: e.ID, Host: e.Host, Address: e.Address}
		if src.Address == "" {
			addr, err := lookupIPv4(ctx, r, e.Host)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"source_id": e.ID,
					"host":      e.Host,
				}).WithError(err).Info("address not found")
			}
			src.Address = addr
		}
		sources = append(sources, src)
	}
	return sources
}

func lookupIPv4(ctx context.Context, r Resolver, host string) (string, error) {
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0], nil
	}
	return "", fmt.Errorf("no addresses for %s", host)
}
