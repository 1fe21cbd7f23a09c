package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"SentimentTracker/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	Security   string
	From       time.Time
	To         time.Time
	SourceName string
	Options    map[string]string
}

// Scanner captures a single strategy implementation (Finnhub, HTML listing, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.RawArticle, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered strategies in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InWindow reports whether t falls inside [from, to]. Zero bounds are open.
func (req Request) InWindow(t time.Time) bool {
	if !req.From.IsZero() && t.Before(req.From) {
		return false
	}
	if !req.To.IsZero() && t.After(req.To) {
		return false
	}
	return true
}
